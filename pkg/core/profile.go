package core

import (
	"fmt"
	"strconv"
	"strings"
)

// ConnectionProfile is a saved set of connection settings.
type ConnectionProfile struct {
	Name          string            `json:"name" yaml:"name"`
	DatabaseType  DatabaseType      `json:"database_type" yaml:"database_type"`
	Host          string            `json:"host" yaml:"host"`
	Port          int               `json:"port" yaml:"port"`
	Username      string            `json:"username" yaml:"username"`
	Password      string            `json:"password" yaml:"password"`
	DefaultSchema string            `json:"default_schema" yaml:"default_schema"`
	UseSSL        bool              `json:"use_ssl" yaml:"use_ssl"`
	Path          string            `json:"path,omitempty" yaml:"path,omitempty"`
	SSHHostname   string            `json:"ssh_hostname,omitempty" yaml:"ssh_hostname,omitempty"`
	SSHPort       int               `json:"ssh_port,omitempty" yaml:"ssh_port,omitempty"`
	SSHUsername   string            `json:"ssh_username,omitempty" yaml:"ssh_username,omitempty"`
	SSHPassword   string            `json:"ssh_password,omitempty" yaml:"ssh_password,omitempty"`
	SSHKeyFile    string            `json:"ssh_key_file,omitempty" yaml:"ssh_key_file,omitempty"`
	Options       map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
}

const redactedSecret = "********"

// ApplyDefaults fills unset fields with type specific defaults. A database
// type given by alias ("postgres", "mariadb") is rewritten to its canonical
// name; an unknown type is left for Validate to report.
func (p *ConnectionProfile) ApplyDefaults() {
	if t, err := ParseDatabaseType(string(p.DatabaseType)); err == nil {
		p.DatabaseType = t
	}
	if p.DatabaseType.IsFileBased() {
		return
	}
	if p.Host == "" {
		p.Host = "localhost"
	}
	if p.Port == 0 {
		p.Port = p.DatabaseType.DefaultPort()
	}
	if p.SSHHostname != "" && p.SSHPort == 0 {
		p.SSHPort = 22
	}
}

// Validate checks that the profile can be used to open a connection.
func (p *ConnectionProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("connection name is required")
	}
	t, err := ParseDatabaseType(string(p.DatabaseType))
	if err != nil {
		return err
	}
	if t.IsFileBased() {
		if p.Path == "" {
			return fmt.Errorf("connection %q: path is required for %s", p.Name, t)
		}
		return nil
	}
	if p.Host == "" {
		return fmt.Errorf("connection %q: host is required", p.Name)
	}
	if p.Port < 0 || p.Port > 65535 {
		return fmt.Errorf("connection %q: invalid port %d", p.Name, p.Port)
	}
	if p.SSHHostname != "" && p.SSHUsername == "" {
		return fmt.Errorf("connection %q: ssh_username is required when ssh_hostname is set", p.Name)
	}
	return nil
}

// UsesSSH reports whether connections should be routed through an SSH tunnel.
func (p *ConnectionProfile) UsesSSH() bool {
	return p.SSHHostname != "" && !p.DatabaseType.IsFileBased()
}

// Address returns host:port for network databases and the path for file databases.
func (p *ConnectionProfile) Address() string {
	if p.DatabaseType.IsFileBased() {
		return p.Path
	}
	return p.Host + ":" + strconv.Itoa(p.Port)
}

// Redacted returns a copy with secrets masked, suitable for display.
func (p ConnectionProfile) Redacted() ConnectionProfile {
	if p.Password != "" {
		p.Password = redactedSecret
	}
	if p.SSHPassword != "" {
		p.SSHPassword = redactedSecret
	}
	if p.Options != nil {
		opts := make(map[string]string, len(p.Options))
		for k, v := range p.Options {
			if v != "" && IsSecretOption(k) {
				v = redactedSecret
			}
			opts[k] = v
		}
		p.Options = opts
	}
	return p
}

// IsSecretOption reports whether an option key names a credential, such
// as ssh_key_passphrase, password or client_secret.
func IsSecretOption(key string) bool {
	k := strings.ToLower(key)
	for _, marker := range []string{"pass", "pwd", "secret", "token", "credential"} {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}

// AdapterConfig converts the profile into the settings handed to an adapter.
func (p *ConnectionProfile) AdapterConfig() AdapterConfig {
	opts := make(map[string]string, len(p.Options))
	for k, v := range p.Options {
		opts[k] = v
	}
	return AdapterConfig{
		Type:     p.DatabaseType,
		Path:     p.Path,
		Host:     p.Host,
		Port:     p.Port,
		Database: p.DefaultSchema,
		Username: p.Username,
		Password: p.Password,
		UseSSL:   p.UseSSL,
		Options:  opts,
	}
}
