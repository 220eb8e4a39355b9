package common

// PackageName identifies this module in logs and metrics.
const PackageName = "jedi-vault"

// Version is set at build time via -ldflags.
var Version = "dev"
