// Package bankswap boots the active flash bank and updates the inactive one.
//
// The Controller runs at loader entry: it validates the live remap state,
// maps the bank named by the boot selector and transfers control to its
// vector table. The Updater stages a new image into the inactive bank and
// flips the boot selector as the very last step before a system reset.
// Hardware side effects go through Platform so the sequencing can be
// exercised against SimPlatform.
package bankswap
