// Package eventloop serialises all engine work onto one goroutine.
//
// MQTT handlers, timer callbacks and HTTP handlers never touch engine
// state directly; they Post (fire and forget) or Do (wait for the
// result) a function on the loop.
package eventloop
