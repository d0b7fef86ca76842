/*
Package authsdk provides the wire types and a Go client for the HerdWatch API.

# SDKClient vs Session

  - SDKClient: unauthenticated operations (register, login, health) and Session creation
  - Session: one signed-in device, with its own cookie jar and automatic token refresh

	client := authsdk.NewSDKClient("https://api.herdwatch.example")

	session, _, err := client.Login(ctx, "farmer@example.com", "secret1")
	if err != nil {
		return err
	}

	me, err := session.Me(ctx)

# Refresh tokens

The server never puts the refresh token in a response body. It is set as the
httpOnly "refreshToken" cookie scoped to /auth, and each Session keeps it in
its own cookie jar. Refresh tokens are single use: every refresh replaces the
cookie, and presenting a token that was already rotated fails with
ErrInvalidToken.

Sessions refresh the access token 30 seconds before it expires. Callers that
need to drive refresh by hand, for example to check that a replayed token is
rejected, can use SDKClient.RefreshWithToken, which sends the given token and
returns the rotated one without touching any jar.

# Errors

Every non-2xx response is returned as an *APIError. The predefined values
(ErrInvalidCredentials, ErrInvalidToken, ErrForbidden, ...) match with
errors.Is on status and code:

	_, _, err := client.Login(ctx, email, "wrong")
	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		// unknown email and wrong password look the same
	}

The server uses the same values to write its responses, so the two sides
cannot drift.

# Thread Safety

Sessions are safe for concurrent use. Concurrent callers that find the access
token expired trigger a single refresh.
*/
package authsdk
