package qi

import (
	"context"
)

// remoteObject calls a service through the endpoint the bus returned for it.
type remoteObject struct {
	session  *defaultSession
	name     string
	endpoint string
}

func (o *remoteObject) Name() string {
	return o.name
}

func (o *remoteObject) Call(method string, args ...interface{}) (interface{}, error) {
	return o.CallContext(context.Background(), method, args...)
}

func (o *remoteObject) CallContext(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	o.session.logger.Debugf("%s.%s(%d args)", o.name, method, len(args))
	params := append([]interface{}{}, args...)
	return callBusAPI(ctx, o.endpoint, "callService", o.session.name, o.name, method, params)
}
