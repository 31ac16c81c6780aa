// 程序入口：读取配置、初始化日志与指标，子命令 run 执行分区统计，results 回读已保存的运行
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"zonal-stats/internal/config"
	"zonal-stats/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "zonalstats",
	Short:         "Per-polygon raster percentile statistics",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadEnvFiles()
		l := logger.Setup()
		l.Debug("log_init_ok")
	},
}

func main() {
	rootCmd.AddCommand(runCmd, resultsCmd)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
