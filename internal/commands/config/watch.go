// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tombee/cosmos/internal/commands/shared"
	"github.com/tombee/cosmos/internal/config"
)

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload the configuration on change",
		Long: `Watch loads the configuration file and reloads it every time it changes,
printing the filter_parameters and services of each version. Invalid
versions are reported and the previous configuration stays active.

Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	rt, err := shared.NewRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())
	if rt.Store.Path() == "" {
		return shared.NewInputError("no configuration file to watch", nil)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := shared.NewStyler(cmd.OutOrStdout())
	report := func(cfg *config.Config) {
		cmd.Println(s.OK("loaded " + rt.Store.Path()))
		cmd.Printf("  %s %v\n", s.Label("filter_parameters"), cfg.FilterParameters())
		cmd.Printf("  %s %v\n", s.Label("services"), cfg.ServiceNames())
	}

	rt.Store.OnChange(report)
	if err := rt.Store.Watch(ctx); err != nil {
		return shared.NewConfigError("failed to watch configuration", err)
	}
	report(rt.Config())

	<-ctx.Done()
	return nil
}
