package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/LouYuanbo1/leadagent/internal/service/export"
	"github.com/spf13/cobra"
)

func newKeywordsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "管理匹配关键词",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "列出已保存的关键词",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			keywords, err := a.settings.Keywords(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keywords {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <keyword...>",
		Short: "添加关键词,已存在的忽略",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, k := range args {
				added, err := a.settings.AddKeyword(cmd.Context(), k)
				if err != nil {
					return err
				}
				if !added {
					fmt.Fprintf(cmd.OutOrStdout(), "关键词已存在: %s\n", strings.TrimSpace(k))
				}
			}
			return nil
		},
	}

	remove := &cobra.Command{
		Use:     "remove <keyword...>",
		Aliases: []string{"rm"},
		Short:   "删除关键词",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, k := range args {
				removed, err := a.settings.RemoveKeyword(cmd.Context(), k)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(cmd.OutOrStdout(), "关键词不存在: %s\n", k)
				}
			}
			return nil
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "把未导出的线索追加到表格",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.exporter.Export(cmd.Context())
			if errors.Is(err, export.ErrNotConfigured) {
				return fmt.Errorf("%w: 请设置 sheets.spreadsheet_id 与 SHEETS_ACCESS_TOKEN", err)
			}
			if err != nil {
				return err
			}
			if res.Message != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.Message)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已导出 %d 条线索\n", res.Count)
			return nil
		},
	}
}
