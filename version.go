package bale

// Version is overridden at build time with -ldflags "-X github.com/aretw0/bale.Version=...".
var Version = "dev"
