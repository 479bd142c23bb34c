package xmlrpc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"sync"
)

// Method is a func taking the decoded call arguments and returning
// (result, error).
type Method interface{}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Handler serves XML-RPC calls by dispatching them to registered methods.
type Handler struct {
	methods map[string]reflect.Value
	wait    sync.WaitGroup
}

// NewHandler returns a handler serving methods. It panics if a method is
// not a func returning (value, error).
func NewHandler(methods map[string]Method) *Handler {
	h := &Handler{methods: make(map[string]reflect.Value, len(methods))}
	for name, method := range methods {
		fn := reflect.ValueOf(method)
		t := fn.Type()
		if t.Kind() != reflect.Func || t.NumOut() != 2 || !t.Out(1).Implements(errorType) || t.IsVariadic() {
			panic(fmt.Sprintf("xmlrpc: method %q must be a func returning (value, error)", name))
		}
		h.methods[name] = fn
	}
	return h
}

// WaitForShutdown blocks until all in-flight calls have returned.
func (h *Handler) WaitForShutdown() {
	h.wait.Wait()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.wait.Add(1)
	defer h.wait.Done()

	var buf bytes.Buffer
	method, params, err := decodeRequest(xml.NewDecoder(req.Body))
	if err != nil {
		encodeFault(&buf, &Fault{Code: FaultParseError, Message: "Invalid request."})
	} else if result, fault := h.invoke(method, params); fault != nil {
		encodeFault(&buf, fault)
	} else if err := encodeResponse(&buf, result); err != nil {
		buf.Reset()
		encodeFault(&buf, &Fault{Code: FaultApplication, Message: fmt.Sprintf("Method '%s' returned an invalid result type.", method)})
	}

	w.Header().Set("Content-Type", "text/xml")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	buf.WriteTo(w)
}

func (h *Handler) invoke(name string, params []interface{}) (interface{}, *Fault) {
	fn, ok := h.methods[name]
	if !ok {
		return nil, &Fault{Code: FaultMethodNotFound, Message: fmt.Sprintf("No method named '%s'.", name)}
	}
	t := fn.Type()
	if len(params) != t.NumIn() {
		return nil, &Fault{
			Code:    FaultInvalidParams,
			Message: fmt.Sprintf("Method '%s' takes %d arguments, got %d.", name, t.NumIn(), len(params)),
		}
	}
	args := make([]reflect.Value, len(params))
	for i, param := range params {
		arg, ok := convertArg(param, t.In(i))
		if !ok {
			return nil, &Fault{
				Code:    FaultInvalidParams,
				Message: fmt.Sprintf("Method '%s' argument %d cannot be %T.", name, i, param),
			}
		}
		args[i] = arg
	}

	out := fn.Call(args)
	if errValue := out[1]; !errValue.IsNil() {
		err := errValue.Interface().(error)
		return nil, &Fault{Code: FaultApplication, Message: err.Error()}
	}
	return out[0].Interface(), nil
}

// convertArg adapts a decoded value to the parameter type of a method.
// Decoded numbers may be converted to any numeric type.
func convertArg(param interface{}, to reflect.Type) (reflect.Value, bool) {
	if param == nil {
		switch to.Kind() {
		case reflect.Interface, reflect.Slice, reflect.Map, reflect.Ptr:
			return reflect.Zero(to), true
		}
		return reflect.Value{}, false
	}
	v := reflect.ValueOf(param)
	if v.Type().AssignableTo(to) {
		return v, true
	}
	if isNumeric(v.Kind()) && isNumeric(to.Kind()) {
		return v.Convert(to), true
	}
	return reflect.Value{}, false
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
