package nailgun

// Version is the client library version, shared by the ng CLI.
const Version = "0.2.0"
