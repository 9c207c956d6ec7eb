// Package httpclient opens long-lived streaming HTTP responses.
//
// It owns the protocol concerns of a stream request: resolving the URL
// against a base, encoding the body, injecting authentication and default
// headers, and classifying failures into the errors taxonomy. The response
// body is handed back unread; framing belongs to the caller.
//
//	client, _ := httpclient.New(httpclient.Config{
//	    BaseURL: "https://api.example.com/v1",
//	    Auth:    httpclient.BearerAuth(apiKey),
//	})
//	stream, err := client.DoStream(ctx, httpclient.Request{
//	    Method: http.MethodPost,
//	    Path:   "workflows/run",
//	    Body:   params,
//	})
//	defer stream.Close()
package httpclient
