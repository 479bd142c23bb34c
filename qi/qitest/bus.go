// Package qitest runs an in-process robot bus for tests and simulation.
//
// The bus answers the client API of package qi, hosts a handful of stock
// services (speech, memory, landmark detection) and pushes memory events to
// subscribed sessions.
package qitest

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"github.com/edwinhayes/naox/qi"
	"github.com/edwinhayes/naox/xmlrpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// BusID is the caller id the bus uses when it calls back into sessions.
const BusID = "robotbus"

// ServiceFunc implements one service hosted by the bus.
type ServiceFunc func(method string, args []interface{}) (interface{}, error)

// Call records one service call.
type Call struct {
	Caller string
	Method string
	Args   []interface{}
}

type subscription struct {
	caller string
	id     string
}

// Bus is a fake robot process bus.
type Bus struct {
	URL string

	listener net.Listener
	server   *http.Server
	handler  *xmlrpc.Handler
	logger   *logrus.Entry

	mutex         sync.Mutex
	clients       map[string]string
	services      map[string]ServiceFunc
	lookups       map[string]int
	calls         map[string][]Call
	subscriptions map[string][]subscription
	memory        map[string]interface{}
	said          []string
	extractors    map[string]bool
}

// NewBus starts a bus on a random loopback port.
func NewBus() (*Bus, error) {
	return NewBusAt("127.0.0.1:0")
}

// NewBusAt starts a bus listening on address.
func NewBusAt(address string) (*Bus, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrap(err, "starting bus")
	}
	bus := &Bus{
		URL:           fmt.Sprintf("http://%s/", listener.Addr().String()),
		listener:      listener,
		logger:        qi.ModuleLogger(nil, "qitest.bus"),
		clients:       make(map[string]string),
		services:      make(map[string]ServiceFunc),
		lookups:       make(map[string]int),
		calls:         make(map[string][]Call),
		subscriptions: make(map[string][]subscription),
		memory:        make(map[string]interface{}),
		extractors:    make(map[string]bool),
	}
	bus.services["ALTextToSpeech"] = bus.textToSpeech
	bus.services["ALMemory"] = bus.memoryService
	bus.services["ALLandMarkDetection"] = bus.landmarkDetection

	bus.handler = xmlrpc.NewHandler(map[string]xmlrpc.Method{
		"registerClient":   bus.registerClient,
		"unregisterClient": bus.unregisterClient,
		"lookupService":    bus.lookupService,
		"callService":      bus.callService,
		"subscribeEvent":   bus.subscribeEvent,
		"unsubscribeEvent": bus.unsubscribeEvent,
	})
	bus.server = &http.Server{Handler: bus.handler}
	go bus.server.Serve(listener)
	return bus, nil
}

// SetLogger replaces the bus logger.
func (bus *Bus) SetLogger(logger *logrus.Entry) {
	bus.logger = logger
}

// Address is the host:port of the bus.
func (bus *Bus) Address() string {
	return bus.listener.Addr().String()
}

// Close stops the bus.
func (bus *Bus) Close() {
	bus.server.Close()
	bus.handler.WaitForShutdown()
}

// AddService hosts fn under name, replacing any existing service.
func (bus *Bus) AddService(name string, fn ServiceFunc) {
	bus.mutex.Lock()
	bus.services[name] = fn
	bus.mutex.Unlock()
}

func (bus *Bus) registerClient(callerID string, callbackURI string) (interface{}, error) {
	bus.mutex.Lock()
	bus.clients[callerID] = callbackURI
	bus.mutex.Unlock()
	bus.logger.Debugf("registered %s at %s", callerID, callbackURI)
	return qi.BuildAPIResult(qi.APIStatusSuccess, "Success", 0), nil
}

func (bus *Bus) unregisterClient(callerID string) (interface{}, error) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	if _, ok := bus.clients[callerID]; !ok {
		return qi.BuildAPIResult(qi.APIStatusFailure, "Unknown client "+callerID, 0), nil
	}
	delete(bus.clients, callerID)
	for event, subs := range bus.subscriptions {
		kept := subs[:0]
		for _, sub := range subs {
			if sub.caller != callerID {
				kept = append(kept, sub)
			}
		}
		bus.subscriptions[event] = kept
	}
	return qi.BuildAPIResult(qi.APIStatusSuccess, "Success", 0), nil
}

func (bus *Bus) lookupService(callerID string, name string) (interface{}, error) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	bus.lookups[name]++
	if _, ok := bus.services[name]; !ok {
		return qi.BuildAPIResult(qi.APIStatusError, "Unknown service: "+name, 0), nil
	}
	return qi.BuildAPIResult(qi.APIStatusSuccess, "Success", bus.URL), nil
}

func (bus *Bus) callService(callerID string, name string, method string, args []interface{}) (interface{}, error) {
	bus.mutex.Lock()
	fn, ok := bus.services[name]
	bus.calls[name] = append(bus.calls[name], Call{Caller: callerID, Method: method, Args: args})
	bus.mutex.Unlock()
	if !ok {
		return qi.BuildAPIResult(qi.APIStatusError, "Unknown service: "+name, 0), nil
	}
	value, err := fn(method, args)
	if err != nil {
		return qi.BuildAPIResult(qi.APIStatusError, err.Error(), 0), nil
	}
	return qi.BuildAPIResult(qi.APIStatusSuccess, "Success", value), nil
}

func (bus *Bus) subscribeEvent(callerID string, event string, subscriberID string) (interface{}, error) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	if _, ok := bus.clients[callerID]; !ok {
		return qi.BuildAPIResult(qi.APIStatusError, "Unknown client "+callerID, 0), nil
	}
	bus.subscriptions[event] = append(bus.subscriptions[event], subscription{caller: callerID, id: subscriberID})
	return qi.BuildAPIResult(qi.APIStatusSuccess, "Success", 0), nil
}

func (bus *Bus) unsubscribeEvent(callerID string, event string, subscriberID string) (interface{}, error) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	subs := bus.subscriptions[event]
	for i, sub := range subs {
		if sub.caller == callerID && sub.id == subscriberID {
			bus.subscriptions[event] = append(subs[:i:i], subs[i+1:]...)
			return qi.BuildAPIResult(qi.APIStatusSuccess, "Success", 0), nil
		}
	}
	return qi.BuildAPIResult(qi.APIStatusFailure, "Not subscribed", 0), nil
}

// Emit pushes payload, a JSON document, to every subscriber of event and
// returns once all of them have accepted it.
func (bus *Bus) Emit(event string, payload string) error {
	if _, _, _, err := jsonparser.Get([]byte(payload)); err != nil {
		return errors.Wrapf(err, "payload of %s is not JSON", event)
	}

	bus.mutex.Lock()
	subs := append([]subscription(nil), bus.subscriptions[event]...)
	targets := make([]string, len(subs))
	for i, sub := range subs {
		targets[i] = bus.clients[sub.caller]
	}
	bus.mutex.Unlock()

	for i, sub := range subs {
		if _, err := xmlrpc.Call(targets[i], "eventUpdate", BusID, sub.id, event, payload); err != nil {
			return errors.Wrapf(err, "delivering %s to %s", event, sub.caller)
		}
	}
	return nil
}

// EmitValue marshals value to JSON and emits it.
func (bus *Bus) EmitValue(event string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", event)
	}
	return bus.Emit(event, string(payload))
}

// Shutdown asks every registered session to stop.
func (bus *Bus) Shutdown(reason string) {
	bus.mutex.Lock()
	targets := make([]string, 0, len(bus.clients))
	for _, uri := range bus.clients {
		targets = append(targets, uri)
	}
	bus.mutex.Unlock()
	for _, uri := range targets {
		if _, err := xmlrpc.Call(uri, "shutdown", BusID, reason); err != nil {
			bus.logger.Warn(err)
		}
	}
}

// NumSubscribers counts the subscriptions to event.
func (bus *Bus) NumSubscribers(event string) int {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	return len(bus.subscriptions[event])
}

// WaitForSubscribers polls until event has n subscribers or timeout
// passes.
func (bus *Bus) WaitForSubscribers(event string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if bus.NumSubscribers(event) == n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Clients lists the registered caller ids.
func (bus *Bus) Clients() []string {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	ids := make([]string, 0, len(bus.clients))
	for id := range bus.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CallbackURI is the address callerID registered for callbacks, or "".
func (bus *Bus) CallbackURI(callerID string) string {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	return bus.clients[callerID]
}

// Lookups counts lookupService calls for name.
func (bus *Bus) Lookups(name string) int {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	return bus.lookups[name]
}

// Calls returns the calls made to service name.
func (bus *Bus) Calls(name string) []Call {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	return append([]Call(nil), bus.calls[name]...)
}

// Said returns everything spoken through ALTextToSpeech.
func (bus *Bus) Said() []string {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	return append([]string(nil), bus.said...)
}

// Extractors lists the active ALLandMarkDetection subscribers.
func (bus *Bus) Extractors() []string {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	names := make([]string, 0, len(bus.extractors))
	for name := range bus.extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
