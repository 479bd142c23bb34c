// Package naox is a small framework for writing robot behaviors.
//
// An Application opens a session to the robot bus and caches the remote
// services it looks up. A Behavior wraps user logic in an
// activate/deactivate lifecycle and offers touch and landmark helpers:
//
//	app, err := naox.New("greeter", "127.0.0.1:9559")
//	if err != nil {
//		return err
//	}
//	b, err := naox.NewBehavior(app, nil)
//	if err != nil {
//		return err
//	}
//	b.OnBodyTouched(func(part string) { b.Say(part) }, "")
//	return app.Run(b)
//
// Each subscription delivers its events on its own goroutine, one at a
// time, in arrival order. A callback may block without holding up other
// subscriptions, so AwaitTouch can be called from a touch callback, from
// OnActivate while Run is starting, or from any other goroutine.
package naox
