package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/savekeep-go/internal/cli/output"
	"github.com/yndnr/savekeep-go/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			env, err := GetEnv(c)
			if err != nil {
				return err
			}
			return env.Print(versionView(buildinfo.Get()))
		},
	}
}

type versionView buildinfo.Info

func (v versionView) Table(bool) *output.Table {
	t := &output.Table{}
	t.SetHeaders("FIELD", "VALUE")
	t.AddRow("version", v.Version)
	t.AddRow("commit", v.Commit)
	t.AddRow("build_time", v.BuildTime)
	t.AddRow("go_version", v.GoVersion)
	return t
}
