package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCmd records the viper values seen by its Run.
func testCmd(seen map[string]string, keys ...string) *cobra.Command {
	cmd := &cobra.Command{
		Use: "test",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			InitEnv("DEMO")
			return BindFlagsLoadViper(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range keys {
				seen[k] = viper.GetString(k)
			}
			return nil
		},
	}
	cmd.Flags().String(HomeFlag, "", "home")
	cmd.Flags().String("name", "default", "name")
	return cmd
}

func resetEnv(t *testing.T) {
	t.Helper()
	viper.Reset()
	for _, k := range []string{"DEMONAME", "DEMO_NAME", "DEMO_COLOR"} {
		require.NoError(t, os.Unsetenv(k))
	}
	t.Cleanup(func() {
		viper.Reset()
		for _, k := range []string{"DEMONAME", "DEMO_NAME", "DEMO_COLOR"} {
			os.Unsetenv(k)
		}
	})
}

func TestBindFlagsLoadViper(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		args []string
		env  map[string]string
		want string
	}{
		{"default", nil, nil, "default"},
		{"flag", []string{"--name", "flag"}, nil, "flag"},
		{"env", nil, map[string]string{"DEMO_NAME": "env"}, "env"},
		{"env without underscore", nil, map[string]string{"DEMONAME": "env2"}, "env2"},
		{"flag beats env", []string{"--name", "flag"}, map[string]string{"DEMO_NAME": "env"}, "flag"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resetEnv(t)
			home := t.TempDir()

			seen := map[string]string{}
			cmd := testCmd(seen, "name")
			args := append([]string{"test", "--home", home}, tc.args...)
			require.NoError(t, RunWithArgs(ctx, cmd, args, tc.env))
			assert.Equal(t, tc.want, seen["name"])
		})
	}
}

func TestBindFlagsLoadViperReadsConfigAndDotEnv(t *testing.T) {
	resetEnv(t)
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "config"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(home, "config", "config.toml"), []byte("name = \"file\"\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(home, DotEnvFile), []byte("DEMO_COLOR=green\n"), 0600))

	seen := map[string]string{}
	cmd := testCmd(seen, "name", "color")
	require.NoError(t, RunWithArgs(context.Background(), cmd, []string{"test", "--home", home}, nil))
	assert.Equal(t, "file", seen["name"])
	assert.Equal(t, "green", seen["color"])
}

func TestBindFlagsLoadViperDotEnvDoesNotOverride(t *testing.T) {
	resetEnv(t)
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, DotEnvFile), []byte("DEMO_NAME=dotenv\n"), 0600))

	seen := map[string]string{}
	cmd := testCmd(seen, "name")
	env := map[string]string{"DEMO_NAME": "shell"}
	require.NoError(t, RunWithArgs(context.Background(), cmd, []string{"test", "--home", home}, env))
	assert.Equal(t, "shell", seen["name"])
}

func TestBindFlagsLoadViperBadConfig(t *testing.T) {
	resetEnv(t)
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte("name = \n"), 0600))

	cmd := testCmd(map[string]string{}, "name")
	err := RunWithArgs(context.Background(), cmd, []string{"test", "--home", home}, nil)
	require.Error(t, err)
}

func TestRunWithTraceReturnsError(t *testing.T) {
	resetEnv(t)
	want := errors.New("boom")
	cmd := &cobra.Command{
		Use:  "fail",
		RunE: func(*cobra.Command, []string) error { return want },
	}
	err := RunWithArgs(context.Background(), cmd, []string{"fail"}, nil)
	assert.Equal(t, want, err)
	assert.True(t, cmd.SilenceUsage)
}
