// Package drive positions a floppy drive's head for capture.
//
// Serial drives a bare floppy drive through the modem-control lines of a
// serial port: RTS selects the step direction, DTR selects the side, the TX
// start bit of a 0xFF byte is the step pulse and CTS reads the track 0
// sensor. Manual is a no-op drive used when captures are replayed from disk
// or the head is positioned by other means.
//
// WaitForDevice blocks until the serial adapter appears, listening for udev
// hotplug events over netlink and polling the device path as a fallback.
package drive
