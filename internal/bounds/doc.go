// Package bounds applies streamed operating-bound updates to components.
//
// Callers push a sequence of bound requests over one logical stream. Each
// item is validated (component exists, metric supported, lower <= upper)
// and forwarded to the driver adapter in strict arrival order. A failing
// item is reported back to the caller without terminating the stream.
package bounds
