// Package flash drives the two symmetric flash banks of the controller.
package flash

// The controller has two equally sized banks. One of them is mapped at the
// execute base address (the active bank), the other one is the staging bank
// and is the only one that may be erased or programmed.
//
// Hardware is reached through Device. Memory provides a simulated Device
// used by tests and by the host side simulator.
