package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-shelter/backend/internal/config"
	"github.com/zhouzirui/z-shelter/backend/internal/model/dataset"
	"github.com/zhouzirui/z-shelter/backend/internal/model/persona"
	datasetService "github.com/zhouzirui/z-shelter/backend/internal/service/dataset"
	"github.com/zhouzirui/z-shelter/backend/internal/service/digest"
)

// 加载数据集并打印注入会话的摘要，用于离线检查数据源
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] .env not loaded, using process environment: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	location := flag.String("location", cfg.Dataset.Location, "文件路径或 http(s) 地址，默认 DATASET_LOCATION")
	locale := flag.String("locale", persona.LocaleEnglish, "摘要语言 en-US / zh-CN")
	timeout := flag.Duration("timeout", 30*time.Second, "HTTP 超时")
	flag.Parse()

	if *location == "" {
		flag.Usage()
		os.Exit(2)
	}

	loader := datasetService.NewLoader(nil)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	records, err := loader.Load(ctx, *location)
	if err != nil {
		log.Fatalf("load failed (%s): %v", dataset.KindOf(err), err)
	}

	labels := digest.EnglishLabels()
	if *locale == persona.LocaleChinese {
		labels = digest.ChineseLabels()
	}
	d := digest.Summarize(records, labels)
	fmt.Println(d.Text)
	if d.TopActivity != nil {
		log.Printf("[digest] top activity: #%d %s (%g)", d.TopActivity.Index+1, d.TopActivity.Name, d.TopActivity.Value)
	}
	if d.TopInquiries != nil {
		log.Printf("[digest] top inquiries: #%d %s (%g)", d.TopInquiries.Index+1, d.TopInquiries.Name, d.TopInquiries.Value)
	}
}
