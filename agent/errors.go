package main

import "errors"

var (
	// ErrConnect means the gateway could not be reached.
	ErrConnect = errors.New("connect failed")
	// ErrHandshake means the upgrade response was not accepted.
	ErrHandshake = errors.New("handshake failed")
	// ErrAuth means the gateway rejected the credentials or never answered.
	ErrAuth = errors.New("authentication failed")
	// ErrDecode marks an inbound frame that could not be parsed. It is never
	// fatal for the connection.
	ErrDecode = errors.New("decode failed")
	// ErrWrite means a frame could not be sent; the connection is unusable.
	ErrWrite = errors.New("write failed")
	// ErrRead means the inbound side of the connection broke.
	ErrRead = errors.New("read failed")
)
