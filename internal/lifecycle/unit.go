package lifecycle

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/okatz/provisor/internal/target"
)

// UnitDefinition is the typed value rendered into the service-manager unit
// file. Every placeholder the unit needs lives here, auditable in one place.
type UnitDefinition struct {
	UnitName    string
	Description string
	InstallRoot string
	Entrypoint  string
	User        string
	Group       string
	RuntimePath string

	// Restart policy: restart on failure within a bounded window.
	RestartSec         int
	StartLimitInterval int
	StartLimitBurst    int
}

const unitTemplate = `[Unit]
Description={{.Description}}
After=network.target
StartLimitIntervalSec={{.StartLimitInterval}}
StartLimitBurst={{.StartLimitBurst}}

[Service]
Type=forking
User={{.User}}
Group={{.Group}}
Environment=JAVA_HOME={{.RuntimePath}}
WorkingDirectory={{.InstallRoot}}
ExecStart={{.Entrypoint}} start
ExecStop={{.Entrypoint}} stop
Restart=on-failure
RestartSec={{.RestartSec}}

[Install]
WantedBy=multi-user.target
`

var unitTmpl = template.Must(template.New("unit").Parse(unitTemplate))

// Render produces the unit file content.
func (d UnitDefinition) Render() (string, error) {
	var b strings.Builder
	if err := unitTmpl.Execute(&b, d); err != nil {
		return "", fmt.Errorf("failed to render unit template: %w", err)
	}
	return b.String(), nil
}

// UnitPath returns the service-manager path of the unit file.
func (d UnitDefinition) UnitPath() string {
	return fmt.Sprintf("/etc/systemd/system/%s.service", d.UnitName)
}

// WriteUnit renders the definition and installs it on the node, reloading
// the service manager so the unit is visible.
func WriteUnit(ctx context.Context, tgt target.Target, def UnitDefinition) error {
	content, err := def.Render()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp("", "provisor-unit-*")
	if err != nil {
		return fmt.Errorf("failed to create temp unit file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp unit file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp unit file: %w", err)
	}

	if err := tgt.Copy(ctx, tmpPath, def.UnitPath()); err != nil {
		return fmt.Errorf("failed to install unit file: %w", err)
	}

	if _, err := target.Output(ctx, tgt, "systemctl daemon-reload"); err != nil {
		return fmt.Errorf("failed to reload service manager: %w", err)
	}
	return nil
}
