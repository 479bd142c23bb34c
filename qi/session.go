package qi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/edwinhayes/naox/xmlrpc"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// defaultSession implements Session. Each subscriber runs its slots on its
// own delivery goroutine, so events of one subscriber keep their arrival
// order while a blocked slot never stalls the others.
type defaultSession struct {
	name         string
	busURI       string
	callbackURI  string
	listener     net.Listener
	server       *http.Server
	handler      *xmlrpc.Handler
	subscribers  map[string]*defaultSubscriber
	subMutex     sync.Mutex
	doneChan     chan struct{}
	ok           bool
	okMutex      sync.RWMutex
	shutdownOnce sync.Once
	clock        clockwork.Clock
	spinInterval time.Duration
	logger       *logrus.Entry
}

func newDefaultSession(cfg Config) (*defaultSession, error) {
	busURL, err := NormalizeURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	session := new(defaultSession)
	session.name = fmt.Sprintf("%s-%s", cfg.Name, strings.SplitN(uuid.NewString(), "-", 2)[0])
	session.busURI = busURL.String()
	session.subscribers = make(map[string]*defaultSubscriber)
	session.doneChan = make(chan struct{})
	session.clock = cfg.Clock
	session.spinInterval = cfg.SpinInterval
	session.logger = ModuleLogger(cfg.Logger, "qi.session").WithField("caller", session.name)
	session.ok = true

	logger := session.logger
	logger.Debugf("Bus URI = %s", session.busURI)

	host, listenIP := callbackHost(busURL.Hostname())
	listener, err := listenCallback(listenIP)
	if err != nil {
		return nil, err
	}
	_, port, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		listener.Close()
		return nil, err
	}
	session.listener = listener
	session.callbackURI = fmt.Sprintf("http://%s/", net.JoinHostPort(host, port))
	logger.Debugf("listen on http://%s", listener.Addr().String())

	session.handler = xmlrpc.NewHandler(map[string]xmlrpc.Method{
		"eventUpdate": func(busID string, subscriberID string, event string, payload string) (interface{}, error) {
			return session.eventUpdate(busID, subscriberID, event, payload)
		},
		"getPid": func(callerID string) (interface{}, error) {
			return BuildAPIResult(APIStatusSuccess, "Success", os.Getpid()), nil
		},
		"getSubscriptions": func(callerID string) (interface{}, error) {
			return BuildAPIResult(APIStatusSuccess, "Success", session.subscriptions()), nil
		},
		"shutdown": func(callerID string, reason string) (interface{}, error) {
			logger.Infof("Shutdown requested by %s: %s", callerID, reason)
			session.setOK(false)
			return BuildAPIResult(APIStatusSuccess, "Success", 0), nil
		},
	})
	session.server = &http.Server{Handler: session.handler}
	go session.server.Serve(listener)

	if _, err := callBusAPI(context.Background(), session.busURI, "registerClient", session.name, session.callbackURI); err != nil {
		session.close()
		return nil, errors.Wrapf(err, "connecting to %s", session.busURI)
	}
	logger.Debugf("Started %s", session.name)
	return session, nil
}

func (session *defaultSession) Name() string {
	return session.name
}

func (session *defaultSession) URL() string {
	return session.busURI
}

func (session *defaultSession) Logger() *logrus.Entry {
	return session.logger
}

func (session *defaultSession) OK() bool {
	session.okMutex.RLock()
	ok := session.ok
	session.okMutex.RUnlock()
	return ok
}

func (session *defaultSession) setOK(ok bool) {
	session.okMutex.Lock()
	session.ok = ok
	session.okMutex.Unlock()
}

func (session *defaultSession) Service(name string) (Object, error) {
	session.logger.Debugf("Call bus API lookupService(%s)", name)
	result, err := callBusAPI(context.Background(), session.busURI, "lookupService", session.name, name)
	if err != nil {
		return nil, err
	}
	endpoint, ok := result.(string)
	if !ok {
		return nil, errors.Errorf("result of lookupService(%s) is not a string", name)
	}
	return &remoteObject{session: session, name: name, endpoint: endpoint}, nil
}

func (session *defaultSession) Subscribe(event string, slots ...func(payload []byte)) (Subscriber, error) {
	sub := newDefaultSubscriber(session, event, uuid.NewString())
	for _, slot := range slots {
		sub.signal.Connect(slot)
	}
	go sub.deliver()

	session.subMutex.Lock()
	session.subscribers[sub.id] = sub
	session.subMutex.Unlock()

	session.logger.Debugf("Call bus API subscribeEvent(%s)", event)
	if _, err := callBusAPI(context.Background(), session.busURI, "subscribeEvent", session.name, event, sub.id); err != nil {
		session.removeSubscriber(sub.id)
		sub.stop()
		return nil, err
	}
	return sub, nil
}

func (session *defaultSession) removeSubscriber(id string) bool {
	session.subMutex.Lock()
	defer session.subMutex.Unlock()
	if _, ok := session.subscribers[id]; !ok {
		return false
	}
	delete(session.subscribers, id)
	return true
}

func (session *defaultSession) subscriptions() []interface{} {
	session.subMutex.Lock()
	defer session.subMutex.Unlock()
	result := []interface{}{}
	for id, sub := range session.subscribers {
		result = append(result, []interface{}{sub.event, id})
	}
	return result
}

func (session *defaultSession) eventUpdate(busID string, subscriberID string, event string, payload string) (interface{}, error) {
	session.subMutex.Lock()
	sub, ok := session.subscribers[subscriberID]
	session.subMutex.Unlock()
	if !ok {
		session.logger.Debugf("eventUpdate(%s) for unknown subscriber %s", event, subscriberID)
		return BuildAPIResult(APIStatusFailure, "No such subscriber", 0), nil
	}

	select {
	case <-session.doneChan:
		return BuildAPIResult(APIStatusFailure, "Session is shutting down", 0), nil
	default:
	}
	if !sub.enqueue([]byte(payload)) {
		return BuildAPIResult(APIStatusFailure, "Subscriber is closed", 0), nil
	}
	session.logger.Debugf("%s : payload queued for %s", event, subscriberID)
	return BuildAPIResult(APIStatusSuccess, "Success", 0), nil
}

// Spin blocks until the session is no longer OK.
func (session *defaultSession) Spin() {
	for session.OK() {
		select {
		case <-session.clock.After(session.spinInterval):
		case <-session.doneChan:
			return
		}
	}
}

// Shutdown unsubscribes everything, unregisters from the bus and stops the
// callback server. Slots still running are not waited for, so Shutdown may
// be called from a slot.
func (session *defaultSession) Shutdown() {
	session.shutdownOnce.Do(func() {
		logger := session.logger
		logger.Debug("Shutting session down")
		session.setOK(false)

		session.subMutex.Lock()
		subs := make([]*defaultSubscriber, 0, len(session.subscribers))
		for _, sub := range session.subscribers {
			subs = append(subs, sub)
		}
		session.subMutex.Unlock()
		for _, sub := range subs {
			sub.Unsubscribe()
		}

		if _, err := callBusAPI(context.Background(), session.busURI, "unregisterClient", session.name); err != nil {
			logger.Warn(err)
		}
		session.close()
		logger.Debug("Shutting session down completed")
	})
}

func (session *defaultSession) close() {
	close(session.doneChan)
	session.server.Close()
	session.handler.WaitForShutdown()
}
