package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// version 在构建时通过 -ldflags "-X main.version=..." 注入。
var version = "dev"

// 退出码：0 成功；1 运行期失败；3 配置/用法错误。
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

// exitError 携带退出码；消息已由命令自身输出。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// cobra 自身的用法错误（未知旗标、参数个数等）
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return exitConfig
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "remap",
		Short:         "多阶段区间重映射：将初始区间经类别链映射到终点类别并求最小值",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV）。
			if err := loadDotEnv(".env"); err != nil {
				fmt.Fprintf(stderr, "提示：.env 读取失败（已跳过）：%v\n", err)
			}
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newRunCmd(stdout, stderr), newInitCmd(stdout, stderr), newVersionCmd(stdout))
	return root
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "打印版本",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(stdout, "remap %s\n", version)
		},
	}
}
