package types

// Version is the canonical project version.
// The CLI, the capture file format and the notification payloads share it.
const Version = "0.3.0"
