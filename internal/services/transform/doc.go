// Package transform filters message events on their way between the
// transports and the user interface.
//
// Every direct and room event passes through a Pipeline. Protocol traffic
// is routed to the owning session host or the point-to-point engine and
// suppressed; plaintext the engines produce is passed on in its place.
package transform
