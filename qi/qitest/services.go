package qitest

import (
	"github.com/pkg/errors"
)

func stringArg(method string, args []interface{}, i int) (string, error) {
	if len(args) <= i {
		return "", errors.Errorf("%s: missing argument %d", method, i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", errors.Errorf("%s: argument %d is %T, not string", method, i, args[i])
	}
	return s, nil
}

func (bus *Bus) textToSpeech(method string, args []interface{}) (interface{}, error) {
	switch method {
	case "say":
		text, err := stringArg(method, args, 0)
		if err != nil {
			return nil, err
		}
		bus.mutex.Lock()
		bus.said = append(bus.said, text)
		bus.mutex.Unlock()
		bus.logger.Infof("say: %s", text)
		return 0, nil
	case "setLanguage":
		if _, err := stringArg(method, args, 0); err != nil {
			return nil, err
		}
		return 0, nil
	}
	return nil, errors.Errorf("ALTextToSpeech has no method %s", method)
}

func (bus *Bus) memoryService(method string, args []interface{}) (interface{}, error) {
	switch method {
	case "getData":
		key, err := stringArg(method, args, 0)
		if err != nil {
			return nil, err
		}
		bus.mutex.Lock()
		value, ok := bus.memory[key]
		bus.mutex.Unlock()
		if !ok {
			return nil, errors.Errorf("no data for key %s", key)
		}
		return value, nil
	case "insertData":
		key, err := stringArg(method, args, 0)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, errors.New("insertData: missing value")
		}
		bus.mutex.Lock()
		bus.memory[key] = args[1]
		bus.mutex.Unlock()
		return 0, nil
	case "raiseEvent":
		event, err := stringArg(method, args, 0)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, errors.New("raiseEvent: missing value")
		}
		bus.mutex.Lock()
		bus.memory[event] = args[1]
		bus.mutex.Unlock()
		// Delivery calls back into sessions, so it must not hold up the
		// caller's request.
		go func() {
			if err := bus.EmitValue(event, args[1]); err != nil {
				bus.logger.Warn(err)
			}
		}()
		return 0, nil
	}
	return nil, errors.Errorf("ALMemory has no method %s", method)
}

func (bus *Bus) landmarkDetection(method string, args []interface{}) (interface{}, error) {
	switch method {
	case "subscribe":
		name, err := stringArg(method, args, 0)
		if err != nil {
			return nil, err
		}
		bus.mutex.Lock()
		bus.extractors[name] = true
		bus.mutex.Unlock()
		return 0, nil
	case "unsubscribe":
		name, err := stringArg(method, args, 0)
		if err != nil {
			return nil, err
		}
		bus.mutex.Lock()
		defer bus.mutex.Unlock()
		if !bus.extractors[name] {
			return nil, errors.Errorf("%s is not subscribed", name)
		}
		delete(bus.extractors, name)
		return 0, nil
	}
	return nil, errors.Errorf("ALLandMarkDetection has no method %s", method)
}
