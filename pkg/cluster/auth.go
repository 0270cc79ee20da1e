package cluster

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

func defaultSSHHome() (string, error) {
	return os.UserHomeDir()
}

// newAuthMethod resolves a transport.AuthMethod for url by asking
// provider, suspending sink for the duration of any blocking prompt.
// HTTP(S) remotes get BasicAuth; SSH remotes get a public-key method
// sourced from the user's default key, decrypted with a
// provider-supplied passphrase if needed.
func newAuthMethod(url string, provider CredentialProvider, sink ProgressSink) transport.AuthMethod {
	if isSSHURL(url) {
		return sshAuthMethod(provider, sink)
	}
	return httpAuthMethod(url, provider, sink)
}

func httpAuthMethod(url string, provider CredentialProvider, sink ProgressSink) transport.AuthMethod {
	var user, pass string
	var err error

	sink.Suspend(func() {
		user, pass, err = provider.BasicAuth(url)
	})
	if err != nil || user == "" {
		return nil
	}

	return &http.BasicAuth{Username: user, Password: pass}
}

func sshAuthMethod(provider CredentialProvider, sink ProgressSink) transport.AuthMethod {
	home, err := defaultSSHHome()
	if err != nil {
		return nil
	}

	keyPath := filepath.Join(home, ".ssh", "id_ed25519")

	if auth, err := ssh.NewPublicKeysFromFile("git", keyPath, ""); err == nil {
		return auth
	}

	var passphrase string
	sink.Suspend(func() {
		passphrase, err = provider.SSHPassphrase(keyPath)
	})
	if err != nil {
		return nil
	}

	auth, err := ssh.NewPublicKeysFromFile("git", keyPath, passphrase)
	if err != nil {
		return nil
	}
	return auth
}

func isSSHURL(url string) bool {
	return strings.HasPrefix(url, "ssh://") || strings.HasPrefix(url, "git@") || strings.Contains(url, "@") && strings.Contains(url, ":") && !strings.Contains(url, "://")
}
