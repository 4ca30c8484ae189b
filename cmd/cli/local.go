package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/linkgrab/linkgrab/internal/domain"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the file categories and their extensions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, services, _, err := loadServices()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tEXTENSIONS")
		for _, cat := range services.Discovery.Categories() {
			name := cat.Name
			if name == config.Discovery.DefaultCategory {
				name += " (default)"
			}
			exts := strings.Join(cat.Extensions, " ")
			if cat.Name == domain.AllFileTypes {
				exts = "*"
			}
			fmt.Fprintf(w, "%s\t%s\n", name, exts)
		}
		return w.Flush()
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover [url]",
	Short: "List the files a page links to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, services, _, err := loadServices()
		if err != nil {
			return err
		}
		category, _ := cmd.Flags().GetString("category")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := services.Discovery.Discover(ctx, args[0], category, func(ev domain.DiscoveryEvent) {
			if quiet || jsonOutput || ev.Kind == domain.DiscoveryFound {
				return
			}
			fmt.Fprintln(os.Stderr, ev.Message)
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SEL\tEXT\tCATEGORY\tURL")
		for _, f := range result.Files {
			sel := " "
			if f.Selected {
				sel = "x"
			}
			fmt.Fprintf(w, "[%s]\t%s\t%s\t%s\n", sel, f.Extension, f.Category, f.URL)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Printf("\n%d file(s) found, %d selected for %s\n",
			len(result.Files), len(domain.SelectedFiles(result.Files)), result.Category)
		if exts := domain.ExtensionsIn(result.Files, result.Category); len(exts) > 0 {
			fmt.Printf("Extensions: %s\n", strings.Join(exts, " "))
		}
		return nil
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [url]",
	Short: "Discover a page and download the selected files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, services, _, err := loadServices()
		if err != nil {
			return err
		}
		category, _ := cmd.Flags().GetString("category")
		dest, _ := cmd.Flags().GetString("dest")
		extList, _ := cmd.Flags().GetString("ext")
		workers, _ := cmd.Flags().GetInt("workers")

		if dest == "" {
			dest = config.Download.BaseDir
		}
		if workers < 1 {
			workers = config.Download.Workers
		}

		interrupts := make(chan os.Signal, 1)
		signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(interrupts)

		discovery := services.Discovery.Start(context.Background(), args[0], category)
		drain(discovery.Events(), interrupts, discovery.Cancel, func(ev domain.DiscoveryEvent) {
			if ev.Kind == domain.DiscoveryStatus || ev.Kind == domain.DiscoveryWarning {
				fmt.Fprintln(os.Stderr, ev.Message)
			}
		})
		result, err := discovery.Wait()
		if err != nil {
			return err
		}

		if exts := splitExtensions(extList); len(exts) > 0 {
			domain.SelectExtensions(result.Files, exts)
		}
		items := domain.SelectedFiles(result.Files)
		if len(items) == 0 {
			fmt.Println("No files selected for download")
			return nil
		}

		fmt.Fprintf(os.Stderr, "Downloading %d file(s) to %s\n", len(items), dest)
		bar := progressbar.NewOptions(len(items),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionSetItsString("file"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)

		session := domain.NewSession(dest, items, workers)
		run := services.Engine.Start(context.Background(), session)
		drain(run.Events(), interrupts, run.Cancel, func(ev domain.ProgressEvent) {
			bar.Clear()
			fmt.Fprintln(os.Stderr, ev.Message)
			bar.Add(1)
		})
		sessionResult, err := run.Wait()
		bar.Finish()
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}

		fmt.Printf("Succeeded: %d  Failed: %d  Not attempted: %d\n",
			sessionResult.Succeeded, sessionResult.Failed, sessionResult.Total-sessionResult.Attempted)
		if sessionResult.Cancelled {
			fmt.Println("Download cancelled")
		}
		if sessionResult.Failed > 0 {
			return fmt.Errorf("%d download(s) failed", sessionResult.Failed)
		}
		return nil
	},
}

// drain handles events until the stream closes. The first interrupt calls cancel;
// the stream still runs to its end so the final events are reported.
func drain[E any](events <-chan E, interrupts <-chan os.Signal, cancel func(), handle func(E)) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			handle(ev)
		case <-interrupts:
			fmt.Fprintln(os.Stderr, "Cancelling...")
			cancel()
			interrupts = nil
		}
	}
}

func init() {
	discoverCmd.Flags().StringP("category", "c", "", "Category preselected for download (default from config)")
	discoverCmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	discoverCmd.Flags().BoolP("quiet", "q", false, "Don't print status lines")

	downloadCmd.Flags().StringP("category", "c", "", "Category to download (default from config)")
	downloadCmd.Flags().StringP("dest", "d", "", "Destination directory (default download.base_dir)")
	downloadCmd.Flags().StringP("ext", "e", "", "Only these extensions, comma separated (e.g. .pdf,.zip)")
	downloadCmd.Flags().IntP("workers", "w", 0, "Parallel downloads (default download.workers)")
}
