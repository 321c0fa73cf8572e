// Package config provides configuration management for easywifi.
//
// The configuration is a YAML file holding the access point settings, the
// location and seed of the credential record, the indicator and radio
// backends, portal tuning, and the devices remembered by discover.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/easywifi/config.yaml or $HOME/.config/easywifi/config.yaml
//   - macOS: $HOME/.config/easywifi/config.yaml
//   - Windows: %LOCALAPPDATA%\easywifi\config.yaml
//
// A relative credentials.path is resolved against the directory holding the
// configuration file; when unset it defaults to WifiCredentials there.
//
// # Security
//
// The Wi-Fi password is never written to this file. Only the fallback
// credentials, which are placeholders, appear here.
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg.AccessPoint.Name = "Kitchen_Setup"
//	if err := cfg.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// Save and SaveTo are serialised by a package mutex so concurrent writers
// cannot interleave temporary files.
package config
