// Package mockserver serves SSE and chunked workflow streams for manual and
// automated testing of stream clients.
//
// GET /events/:channel subscribes to a channel in the standard dialect.
// POST /broadcast/:channel publishes a JSON event to its subscribers.
// POST /workflows/run and POST /chat-messages stream scripted workflow
// and chat answers in the chunked dialect.
//
// Workflow routes accept Config.APIKey or, with a TokenSecret, an HS256
// token from Tokens. With Config.Redis set, broadcasts go through Redis
// pub/sub and reach the subscribers of every server sharing it.
//
//	srv, _ := mockserver.New(mockserver.Config{Port: 8089}, nil)
//	_ = srv.Start(ctx)
//	defer srv.Stop(ctx)
package mockserver
