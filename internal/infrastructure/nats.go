package infrastructure

import (
	"github.com/nats-io/nats.go"
)

// connectNats dials the notification bus. The bus is mandatory, sagas cannot
// emit without it, so a failed connect aborts bootstrap.
func connectNats(url string) (*nats.Conn, error) {
	return nats.Connect(url, nats.Name("saldo"))
}
