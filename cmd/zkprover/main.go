// Package main provides the zkprover CLI: proving-time benchmarks and the
// configuration surface shared by them.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/proofchain-labs/zk-light-client/prover"
)

// rootArgs are the flags shared across all commands.
type rootArgs struct {
	basePath string
	logLevel string
	backend  string
}

func (a *rootArgs) resolveBasePath() prover.BasePath {
	if a.basePath != "" {
		return prover.NewBasePath(a.basePath)
	}
	return prover.DefaultBasePath()
}

func (a *rootArgs) backendConfig() prover.Config {
	return prover.Config{Kind: prover.Kind(a.backend)}
}

// initLogger builds the process logger from the --log flag. Unknown level
// names fall back to info with a warning on stderr.
func (a *rootArgs) initLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(a.logLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q, using info\n", a.logLevel)
		level = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func main() {
	// A local .env can carry the backend selection and RPC endpoints.
	_ = godotenv.Load()

	args := &rootArgs{}

	rootCmd := &cobra.Command{
		Use:   "zkprover",
		Short: "Recursive light client prover for Bitcoin and BFT chains",
		Long: `zkprover drives the recursive proving pipeline of the light client:
per-block consensus proofs chained through an accumulator, state membership
proofs against proven blocks, and the terminal Groth16 aggregation that
merges both into one pairing-based proof.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&args.basePath, "base-path", "", "Base directory for everything written on disk (defaults to the user cache dir)")
	rootCmd.PersistentFlags().StringVar(&args.logLevel, "log", "info", "Log level: error, warn, info, debug or trace")
	rootCmd.PersistentFlags().StringVar(&args.backend, "backend", string(prover.KindMock), "Proving backend: mock, cpu, cuda or network")

	viper.SetEnvPrefix("ZKPROVER")
	viper.AutomaticEnv()
	if err := viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cobra.OnInitialize(func() {
		args.backend = viper.GetString("backend")
	})

	rootCmd.AddCommand(
		benchCmd(args),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
