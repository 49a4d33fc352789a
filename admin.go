package aspike

import (
	"context"
	"fmt"
	"strings"

	"github.com/synnergy-kv/aspike/internal/cluster"
	"github.com/synnergy-kv/aspike/internal/codec"
)

// InfoNode sends an info request to one named node and returns the parsed
// (name, value) pairs.
func (c *Client) InfoNode(ctx context.Context, nodeName string, commands ...string) (map[string]string, error) {
	n, ok := c.cluster.NodeByName(nodeName)
	if !ok {
		return nil, newClientErr(fmt.Sprintf("unknown node %q", nodeName))
	}
	out, err := cluster.InfoOnNode(ctx, c.dialer, n, c.infoTimeout, commands...)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	return out, nil
}

// InfoForeach sends the same info request to every known node, returning
// one result set per node keyed by node name. A per-node failure is
// recorded in errs rather than aborting the whole fan-out.
func (c *Client) InfoForeach(ctx context.Context, commands ...string) (results map[string]map[string]string, errs map[string]error) {
	results = make(map[string]map[string]string)
	errs = make(map[string]error)
	for _, n := range c.cluster.Nodes() {
		out, err := cluster.InfoOnNode(ctx, c.dialer, n, c.infoTimeout, commands...)
		if err != nil {
			errs[n.Name()] = classifyTransportErr(err)
			continue
		}
		results[n.Name()] = out
	}
	return results, errs
}

func (c *Client) infoToAnyNode(ctx context.Context, commands ...string) (map[string]string, error) {
	nodes := c.cluster.Nodes()
	if len(nodes) == 0 {
		return nil, newClusterErr("no nodes available", nil)
	}
	out, err := cluster.InfoOnNode(ctx, c.dialer, nodes[0], c.infoTimeout, commands...)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	return out, nil
}

// checkInfoAck inspects a single-command info reply for the server's
// standard "ok"/"fail:<reason>" acknowledgement convention.
func checkInfoAck(reply map[string]string, command string) error {
	v, ok := reply[command]
	if !ok {
		return nil
	}
	if v == "ok" || v == "" {
		return nil
	}
	if strings.HasPrefix(v, "fail:") {
		return &Error{Kind: KindServer, Msg: strings.TrimPrefix(v, "fail:")}
	}
	return nil
}

// IndexCreate creates a secondary index on namespace/set/bin.
func (c *Client) IndexCreate(ctx context.Context, namespace, set, bin, indexName string, indexType string) error {
	cmd := fmt.Sprintf("sindex-create:ns=%s;set=%s;indexname=%s;indexdata=%s,%s",
		namespace, set, indexName, bin, indexType)
	reply, err := c.infoToAnyNode(ctx, cmd)
	if err != nil {
		return err
	}
	return checkInfoAck(reply, cmd)
}

// IndexRemove drops a secondary index.
func (c *Client) IndexRemove(ctx context.Context, namespace, indexName string) error {
	cmd := fmt.Sprintf("sindex-delete:ns=%s;indexname=%s", namespace, indexName)
	reply, err := c.infoToAnyNode(ctx, cmd)
	if err != nil {
		return err
	}
	return checkInfoAck(reply, cmd)
}

// UDFPut registers a UDF module's source with the cluster.
func (c *Client) UDFPut(ctx context.Context, moduleName string, source []byte) error {
	cmd := fmt.Sprintf("udf-put:filename=%s;content=%s", moduleName, string(source))
	reply, err := c.infoToAnyNode(ctx, cmd)
	if err != nil {
		return err
	}
	return checkInfoAck(reply, cmd)
}

// UDFGet retrieves a UDF module's registered source.
func (c *Client) UDFGet(ctx context.Context, moduleName string) ([]byte, error) {
	cmd := fmt.Sprintf("udf-get:filename=%s", moduleName)
	reply, err := c.infoToAnyNode(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return []byte(reply[cmd]), nil
}

// UDFList lists every registered UDF module's name.
func (c *Client) UDFList(ctx context.Context) ([]string, error) {
	reply, err := c.infoToAnyNode(ctx, "udf-list")
	if err != nil {
		return nil, err
	}
	v := reply["udf-list"]
	if v == "" {
		return nil, nil
	}
	var out []string
	for _, entry := range strings.Split(v, ";") {
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out, nil
}

// UDFRemove deregisters a UDF module.
func (c *Client) UDFRemove(ctx context.Context, moduleName string) error {
	cmd := fmt.Sprintf("udf-remove:filename=%s", moduleName)
	reply, err := c.infoToAnyNode(ctx, cmd)
	if err != nil {
		return err
	}
	return checkInfoAck(reply, cmd)
}

// Apply invokes a registered UDF function against a single record and
// returns its decoded return value.
func (c *Client) Apply(ctx context.Context, pol WritePolicy, k *Key, module, function string, args []interface{}) (Value, error) {
	argBytes, err := codec.EncodeList(args)
	if err != nil {
		return Value{}, err
	}
	fields := []codec.Field{
		{Type: codec.FieldUDFModule, Data: []byte(module)},
		{Type: codec.FieldUDFFunction, Data: []byte(function)},
		{Type: codec.FieldUDFArgList, Data: argBytes},
	}
	h := codec.Header{InfoFlags1: codec.InfoWrite}
	msg, err := c.execute(ctx, k, pol.Policy, true, h, fields, nil)
	if err != nil {
		return Value{}, err
	}
	if len(msg.Ops) == 0 {
		return Value{tag: codec.ValueNil}, nil
	}
	return decodeValue(msg.Ops[0].ValueTag, msg.Ops[0].Value)
}

// UserCreate creates a new user with the given roles.
func (c *Client) UserCreate(ctx context.Context, user, password string, roles []string) error {
	cmd := fmt.Sprintf("user-create:user=%s;password=%s;roles=%s", user, password, strings.Join(roles, ";"))
	reply, err := c.infoToAnyNode(ctx, cmd)
	if err != nil {
		return err
	}
	return checkInfoAck(reply, cmd)
}

// UserDrop removes a user.
func (c *Client) UserDrop(ctx context.Context, user string) error {
	cmd := fmt.Sprintf("user-drop:user=%s", user)
	reply, err := c.infoToAnyNode(ctx, cmd)
	if err != nil {
		return err
	}
	return checkInfoAck(reply, cmd)
}

// GrantRoles adds roles to an existing user.
func (c *Client) GrantRoles(ctx context.Context, user string, roles []string) error {
	cmd := fmt.Sprintf("user-grant-roles:user=%s;roles=%s", user, strings.Join(roles, ";"))
	reply, err := c.infoToAnyNode(ctx, cmd)
	if err != nil {
		return err
	}
	return checkInfoAck(reply, cmd)
}

// RevokeRoles removes roles from an existing user.
func (c *Client) RevokeRoles(ctx context.Context, user string, roles []string) error {
	cmd := fmt.Sprintf("user-revoke-roles:user=%s;roles=%s", user, strings.Join(roles, ";"))
	reply, err := c.infoToAnyNode(ctx, cmd)
	if err != nil {
		return err
	}
	return checkInfoAck(reply, cmd)
}

// SetPassword changes a user's password.
func (c *Client) SetPassword(ctx context.Context, user, password string) error {
	cmd := fmt.Sprintf("user-set-password:user=%s;password=%s", user, password)
	reply, err := c.infoToAnyNode(ctx, cmd)
	if err != nil {
		return err
	}
	return checkInfoAck(reply, cmd)
}

// QueryUser returns a user's roles and connection stats.
func (c *Client) QueryUser(ctx context.Context, user string) (map[string]string, error) {
	cmd := fmt.Sprintf("query-user:user=%s", user)
	return c.infoToAnyNode(ctx, cmd)
}
