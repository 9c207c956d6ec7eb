// Package sse implements a reconnecting client for Server-Sent Events and
// chunked JSON streams.
//
// A Client owns one transport session at a time and moves through the
// closed, connecting, open and error states. Frames are parsed by a
// frame.Dialect and emitted to listeners as event.Event values; an optional
// FrameDecoder (such as workflow.Decoder) receives the same frames for typed
// decoding. Failed sessions reconnect with jittered exponential backoff
// until MaxRetries consecutive attempts have failed.
//
//	c, err := sse.New(sse.DefaultConfig("https://example.com/events"))
//	if err != nil {
//		return err
//	}
//	c.On("message", func(ev event.Event) { fmt.Println(ev.Data) })
//	c.OnStatus(func(s event.Status) { log.Println(s) })
//	c.Connect()
//	defer c.Destroy()
//
// Listeners run on the client's loop goroutine, one at a time, in wire
// order. A listener may call any Client method, including Disconnect.
package sse
