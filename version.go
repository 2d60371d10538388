package feedme

import "slices"

// negotiateVersion picks the spec version to use from the server's
// HandshakeResponse, given the versions the client offered in Handshake.
// The current client only ever offers a single version, so this amounts to
// confirming the server echoed it back; it exists as its own function so a
// future client offering more than one version has a single place to grow
// into.
func negotiateVersion(offered []string, serverVersion string) (string, bool) {
	if !slices.Contains(offered, serverVersion) {
		return "", false
	}
	return serverVersion, true
}
