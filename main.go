package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/any-hub/pmemo/internal/config"
	"github.com/any-hub/pmemo/internal/logging"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	inspect     bool
	demo        bool
	demoArg     int
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(*cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["cache_path"] = cfg.CachePath
		fields["log_destination"] = cfg.LogDestination()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	if opts.demo {
		if err := runDemo(cfg, logger, opts.demoArg); err != nil {
			fmt.Fprintf(stdErr, "demo 执行失败: %v\n", err)
			return 1
		}
		return 0
	}

	if opts.inspect {
		if err := inspectCache(cfg, logger); err != nil {
			fmt.Fprintf(stdErr, "读取缓存失败: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Fprintln(stdErr, "未指定动作：使用 -inspect、-demo n 或 -check-config")
	return 1
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("pmemo", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		inspect    bool
		demoArg    int
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./pmemo.toml，可被 PMEMO_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.BoolVar(&inspect, "inspect", false, "列出缓存文件中的全部条目")
	fs.IntVar(&demoArg, "demo", 0, "以缓存方式计算 triple(n)")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	demo := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "demo" {
			demo = true
		}
	})
	if demo && inspect {
		return cliOptions{}, fmt.Errorf("-demo 与 -inspect 不能同时使用")
	}
	// 未指定其它动作时默认输出缓存概览
	if !demo && !checkOnly && !showVer {
		inspect = true
	}

	path := os.Getenv("PMEMO_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "pmemo.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		inspect:     inspect,
		demo:        demo,
		demoArg:     demoArg,
	}, nil
}
