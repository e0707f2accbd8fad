// Package resource bounds what an index may consume: accounted memory for
// node and member vectors, background worker slots for build and vacuum,
// and IO bandwidth for remote page devices.
//
// A nil *Controller is valid and imposes no limits.
package resource
