package plugin

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// Handshake is used to verify that the plugin and host are compatible
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "POLYVER_PLUGIN",
	MagicCookieValue: "polyver-tool-plugin-v1",
}

// PluginMap is the map of plugins we can dispense
var PluginMap = map[string]plugin.Plugin{
	"tool": &ToolRPCPlugin{},
}

// ToolRPCPlugin is the implementation of plugin.Plugin for RPC
type ToolRPCPlugin struct {
	Impl Transport
}

func (p *ToolRPCPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &ToolRPCServer{Impl: p.Impl}, nil
}

func (p *ToolRPCPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &ToolRPCClient{client: c}, nil
}

// ToolRPCServer is the RPC server that ToolRPCClient talks to
type ToolRPCServer struct {
	Impl Transport
}

// CallArgs are the arguments for the Call RPC
type CallArgs struct {
	Name    string
	Payload []byte
}

// CallResp is the response for the Call RPC
type CallResp struct {
	Result []byte
	Error  string
}

func (s *ToolRPCServer) Call(args *CallArgs, resp *CallResp) error {
	result, err := s.Impl.Call(args.Name, args.Payload)
	resp.Result = result
	if err != nil {
		resp.Error = err.Error()
	}
	return nil
}

// ExportsResp is the response for the Exports RPC
type ExportsResp struct {
	Names []string
}

func (s *ToolRPCServer) Exports(args interface{}, resp *ExportsResp) error {
	names, err := s.Impl.Exports()
	if err != nil {
		return err
	}
	resp.Names = names
	return nil
}

// ToolRPCClient is the RPC client that talks to ToolRPCServer
type ToolRPCClient struct {
	client *rpc.Client
}

func (c *ToolRPCClient) Call(name string, payload []byte) ([]byte, error) {
	var resp CallResp
	if err := c.client.Call("Plugin.Call", &CallArgs{Name: name, Payload: payload}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &ExecError{Message: resp.Error}
	}
	return resp.Result, nil
}

func (c *ToolRPCClient) Exports() ([]string, error) {
	var resp ExportsResp
	if err := c.client.Call("Plugin.Exports", new(interface{}), &resp); err != nil {
		return nil, err
	}
	return resp.Names, nil
}

// ExecError carries a plugin-reported diagnostic across the RPC boundary.
type ExecError struct {
	Message string
}

func (e *ExecError) Error() string {
	return e.Message
}
