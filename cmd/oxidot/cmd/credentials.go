package cmd

import (
	"github.com/charmbracelet/huh"
)

// huhCredentialProvider prompts interactively via huh forms. It
// implements pkg/cluster.CredentialProvider.
type huhCredentialProvider struct{}

func (huhCredentialProvider) BasicAuth(url string) (string, string, error) {
	var user, pass string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Description(url).
				Value(&user),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&pass),
		),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		return "", "", err
	}
	return user, pass, nil
}

func (huhCredentialProvider) UserPassword(url, user string) (string, error) {
	var pass string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Password for " + user).
				Description(url).
				EchoMode(huh.EchoModePassword).
				Value(&pass),
		),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		return "", err
	}
	return pass, nil
}

func (huhCredentialProvider) SSHPassphrase(keyPath string) (string, error) {
	var passphrase string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SSH key passphrase").
				Description(keyPath).
				EchoMode(huh.EchoModePassword).
				Value(&passphrase),
		),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		return "", err
	}
	return passphrase, nil
}
