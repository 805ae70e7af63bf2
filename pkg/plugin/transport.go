package plugin

// Transport is the narrow sandbox capability the host builds on: call a
// named exported function with a serialized input value and receive a
// serialized output value, or an error. The go-plugin RPC client implements
// it for real plugin processes; tests substitute an in-memory fake.
type Transport interface {
	// Call invokes a named exported function. A nil payload means the
	// function takes no input; a nil result means it returns none.
	Call(name string, payload []byte) ([]byte, error)

	// Exports lists the function names the plugin exports. Queried once at
	// load time.
	Exports() ([]string, error)
}
