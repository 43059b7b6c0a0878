package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/gocarina/gocsv"
	"github.com/joho/godotenv"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/archive"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/climate"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/config"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/export"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/notification"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/pipeline"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/properties"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/roi"
)

func printBanner() {
	figure1 := figure.NewFigure("Paddock", "isometric1", true)
	figure2 := figure.NewFigure("Pulse", "isometric1", true)
	bannercolor.Cyan(figure1.String())
	bannercolor.Cyan(figure2.String())
	fmt.Println()
}

func runPipeline(ctx context.Context, reader *bufio.Reader) {
	fmt.Println("\033[33m\nWarning:\033[0m")
	fmt.Println("\033[33m- A '.geojson' file with the region name should be present in data/geojsons folder.\033[0m")

	fmt.Print("\033[34mEnter the area name: \033[0m")
	area, _ := reader.ReadString('\n')
	area = strings.TrimSpace(area)

	fmt.Print("\033[34mEnter the yield year (YYYY): \033[0m")
	yearStr, _ := reader.ReadString('\n')
	year, err := strconv.Atoi(strings.TrimSpace(yearStr))
	if err != nil {
		fmt.Printf("\n\033[31mInvalid year.\033[0m\n")
		return
	}

	fmt.Print("\033[34mEnter indices (comma separated, empty for NDVI): \033[0m")
	indicesStr, _ := reader.ReadString('\n')

	cfg := config.Default(area, year)
	cfg.RegionPath = area
	if trimmed := strings.TrimSpace(indicesStr); trimmed != "" {
		cfg.Indices = nil
		for _, name := range strings.Split(trimmed, ",") {
			cfg.Indices = append(cfg.Indices, strings.TrimSpace(name))
		}
	}

	backend, err := archive.NewClient()
	if err != nil {
		fmt.Printf("\n\033[31mError creating backend client: %s\033[0m\n", err.Error())
		return
	}

	rep := pipeline.Run(ctx, cfg, backend)
	summary := rep.SummaryText()
	fmt.Println()
	fmt.Println(summary)

	if rep.HasFailures() {
		if err := notification.SendErrorNotification(summary); err != nil {
			fmt.Printf("\033[31mFailed to send notification: %s\033[0m\n", err.Error())
		}
		return
	}
	if err := notification.SendSuccessNotification(summary); err != nil {
		fmt.Printf("\033[31mFailed to send notification: %s\033[0m\n", err.Error())
	}
}

func fetchClimateTable(ctx context.Context, reader *bufio.Reader) {
	fmt.Print("\033[34mEnter the area name: \033[0m")
	area, _ := reader.ReadString('\n')
	area = strings.TrimSpace(area)

	fmt.Print("\033[34mEnter the year (YYYY): \033[0m")
	yearStr, _ := reader.ReadString('\n')
	year, err := strconv.Atoi(strings.TrimSpace(yearStr))
	if err != nil {
		fmt.Printf("\n\033[31mInvalid year.\033[0m\n")
		return
	}

	region, err := roi.Load(properties.RootPath(), area)
	if err != nil {
		fmt.Printf("\n\033[31mError loading region: %s\033[0m\n", err.Error())
		return
	}

	cfg := config.Default(area, year)
	start, _ := cfg.StartDate()
	end, _ := cfg.EndDate()

	rows, err := climate.FetchDaily(ctx, region, start, end, []string{"R", "X", "N", "J"})
	if err != nil {
		fmt.Printf("\n\033[31mError fetching climate data: %s\033[0m\n", err.Error())
		return
	}

	if err := os.MkdirAll(cfg.ExportDir(), 0755); err != nil {
		fmt.Printf("\n\033[31mError creating export folder: %s\033[0m\n", err.Error())
		return
	}
	dest := filepath.Join(cfg.ExportDir(), cfg.ExportName("climate_daily")+".csv")
	err = export.WriteAtomic(dest, func(f *os.File) error {
		return gocsv.MarshalFile(&rows, f)
	})
	if err != nil {
		fmt.Printf("\n\033[31mError writing climate table: %s\033[0m\n", err.Error())
		return
	}
	fmt.Printf("\n\033[32mClimate table written to %s\033[0m\n", dest)
}

func listRegions() {
	files, err := os.ReadDir(properties.RootPath() + "/data/geojsons")
	if err != nil {
		fmt.Printf("\n\033[31mError reading geojsons folder: %s\033[0m\n", err.Error())
		return
	}
	fmt.Println("\033[33m\nWarning:\033[0m")
	fmt.Println("\033[33mTo add a new region, add its '.geojson' file at 'data/geojsons' folder.\033[0m")

	fmt.Println("\n\033[32mAvailable regions:\033[0m")
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".geojson") {
			fmt.Printf("\033[32m- %s\033[0m\n", strings.TrimSuffix(file.Name(), ".geojson"))
		}
	}
}

func initCLI(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("\n\033[31mPANIC: %v\033[0m\n", r)
			fmt.Printf("\033[31mExiting...\033[0m\n")

			errMessage := fmt.Sprintf("Paddock Pulse CLI panic:\n\n%v\n\nStack trace:\n%s", r, debug.Stack())
			if err := notification.SendErrorNotification(errMessage); err != nil {
				fmt.Printf("\033[31mFailed to send notification: %s\033[0m\n", err.Error())
			}
		}
	}()
	printBanner()
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println("\033[34m===================\033[0m")
		fmt.Println("\033[34m1. Run pipeline for a region\033[0m")
		fmt.Println("\033[34m2. List available regions\033[0m")
		fmt.Println("\033[34m3. Fetch climate table for a region\033[0m")
		fmt.Println("\033[34m4. Exit\033[0m")
		fmt.Println("\033[34mEnter your choice:\033[0m")

		var choice int
		if _, err := fmt.Scan(&choice); err != nil {
			fmt.Printf("\n\033[31mInvalid input. Please enter a number.\033[0m\n")
			fmt.Scanln()
			continue
		}

		switch choice {
		case 1:
			runPipeline(ctx, reader)
		case 2:
			listRegions()
		case 3:
			fetchClimateTable(ctx, reader)
		case 4:
			println("Exiting...")
			return
		default:
			println("Invalid choice. Please try again.")
		}
	}
}

func main() {
	if err := godotenv.Load("../../.env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			if err := godotenv.Load(".env"); err != nil {
				fmt.Println("\033[33mNo .env file found, relying on the environment.\033[0m")
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCLI(ctx)
}
