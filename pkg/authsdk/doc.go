/*
Package authsdk provides a client SDK for the Beaver authentication service.

# Overview

The service keeps sessions in two httpOnly cookies, "authentication" (the
access token) and "refresh" (the refresh token). The SDK mirrors that: a
Session owns a private cookie jar, so every Session behaves like one
browser or device.

	client := authsdk.NewSDKClient("https://auth.example.com")

	// Public endpoints
	health, err := client.GetLiveness(ctx)

	// Create an account, or sign in to an existing one
	session, err := client.Signup(ctx, "alice@example.com", "correct horse battery")
	session, err := client.Signin(ctx, "alice@example.com", "correct horse battery")

Authenticated calls use the session's cookies:

	me, err := session.Me(ctx)
	count, err := session.ActiveSessionCount(ctx)

	// Rotate the refresh token and receive a new access token
	err = session.Refresh(ctx)

	// Revoke this device, or every device of the user
	err = session.Logout(ctx)
	err = session.LogoutAll(ctx)

# Errors

Non-2xx responses are returned as *APIError carrying the HTTP status, the
error code and the public description. IsUnauthorized reports whether an
error is a 401.
*/
package authsdk
