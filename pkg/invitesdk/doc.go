/*
Package invitesdk is the client side of the tenancy invite service.

# Client

Client wraps the HTTP API. Public calls need nothing but a base URL;
authenticated calls take the access token issued by the identity provider:

	client := invitesdk.NewClient("https://tenancy.example.com")

	preview, err := client.Preview(ctx, token)
	if invitesdk.IsInvalidToken(err) {
		// expired, revoked, used or never existed
	}

	res, err := client.Accept(ctx, accessToken, invitesdk.AcceptRequest{Token: token})

Preview, Accept and the read calls are retried on transport errors and 5xx
responses. Errors are *APIError or, for 429 answers, *RateLimitedError.

# Sign-in coordination

A fresh sign-in has two candidates for setting the identity's first role:
the default bootstrap and a pending invite. Guard makes sure only one of them
does. Everything runs on a Loop, and both subscribe to the same AuthBus:

	loop := invitesdk.NewLoop()
	bus := invitesdk.NewAuthBus(loop)
	suppression := &invitesdk.Suppression{}

	bootstrapper := &invitesdk.DefaultBootstrapper{Loop: loop, API: client, Suppression: suppression}
	bootstrapper.Attach(bus)

	guard := invitesdk.NewGuard(invitesdk.GuardConfig{
		Loop:         loop,
		API:          client,
		Markers:      invitesdk.NewFileMarkerStore(path),
		Suppression:  suppression,
		Bootstrapper: bootstrapper,
	})
	guard.Attach(bus)

	// when the app opens an invite link, possibly before sign-in
	_ = guard.HandleDeepLink(link)

	// when the identity provider reports a sign-in
	bus.Publish(invitesdk.Identity{ID: sub, Email: email, AccessToken: at})

When a marker is pending at sign-in, the guard raises the suppression flag
in the same loop turn and accepts the invite; the bootstrapper, whose work
always starts on a later turn, sees the flag and writes nothing. If the
accept fails the flag is dropped and the default bootstrap runs instead.
*/
package invitesdk
