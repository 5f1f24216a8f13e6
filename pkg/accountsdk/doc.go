/*
Package accountsdk provides a client SDK for the clipshare accounts service.

# Overview

The package is organized around two types:

  - Client: unauthenticated operations (health, register, login)
  - Session: authenticated operations with automatic token refresh

Create a Client and log in to obtain a Session:

	client := accountsdk.NewClient("https://accounts.example.com")

	user, err := client.Register(ctx, accountsdk.RegisterRequest{
		FullName: "Alice Liddell",
		Email:    "alice@example.com",
		Username: "alice",
		Password: "wonderland",
		Avatar:   accountsdk.File{Name: "alice.png", Body: f},
	})

	session, err := client.Login(ctx, accountsdk.LoginRequest{Username: "alice", Password: "wonderland"})

	me, err := session.CurrentUser(ctx)

Sessions refresh the access token shortly before it expires. The refresh
token is single use, so a Session must not be shared between processes.

# Errors

Every non-2xx response becomes an *APIError carrying the status code and the
message from the response envelope:

	var apiErr *accountsdk.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		// username or email taken
	}

The request and response types double as the service's wire contract and
are referenced by its API documentation.
*/
package accountsdk
