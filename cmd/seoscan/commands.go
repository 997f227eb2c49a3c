package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/SeoScan/internal/crawlers"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <base-url>",
	Short: "从页面发现同站链接并逐行输出",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		headerManager, err := newHeaderManager(appConfig)
		if err != nil {
			return err
		}

		discoverer := crawlers.NewLinkDiscoverer(appConfig.Input.StaticKeywords, appConfig.Input.DiscoveryTimeout, headerManager)
		links, err := discoverer.Discover(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("链接发现失败: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, link := range links {
			fmt.Fprintln(out, link)
		}
		return nil
	},
}

var ampCmd = &cobra.Command{
	Use:   "amp <url>",
	Short: "调用AMP校验服务检查单个页面",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		validator, err := crawlers.NewAmpValidator(appConfig.Amp)
		if err != nil {
			return fmt.Errorf("创建AMP校验器失败: %w", err)
		}

		result := validator.Validate(cmd.Context(), args[0])
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %s\n", result.URL, result.Summary)
		for _, msg := range result.Messages {
			fmt.Fprintf(out, "  %s\n", msg)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "输出合并命令行参数后的生效配置 (YAML)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := appConfig.ToYAML()
		if err != nil {
			return fmt.Errorf("序列化配置失败: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "SeoScan %s\n", Version)
		fmt.Fprintf(out, "构建时间: %s\n", BuildTime)
		fmt.Fprintf(out, "Go版本: %s\n", runtime.Version())
	},
}
