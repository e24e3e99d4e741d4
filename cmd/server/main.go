package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mallwallet/internal/config"
	"mallwallet/internal/handler"
	"mallwallet/internal/infrastructure/cache"
	"mallwallet/internal/infrastructure/database"
	"mallwallet/internal/infrastructure/lock"
	"mallwallet/internal/infrastructure/mq"
	"mallwallet/internal/job"
	"mallwallet/internal/service"
	storemysql "mallwallet/internal/store/mysql"
	"mallwallet/pkg/idgen"
	"mallwallet/pkg/logger"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "配置文件路径")
	flag.Parse()

	cfg := config.LoadConfig(*configPath)
	appLog := logger.NewLogger("wallet")

	gen, err := idgen.New(cfg.Server.NodeID)
	if err != nil {
		log.Fatalf("初始化单号生成器失败: %v", err)
	}

	db := database.InitMySQL(&cfg.MySQL)
	redisClient := cache.InitRedis(&cfg.Redis)
	producer := mq.NewProducer(&cfg.Kafka)
	defer producer.Close()

	st := storemysql.New(db)
	locker := lock.NewRedisLocker(redisClient)
	clock := service.SystemClock{}
	verifier := cache.NewRedisCodeVerifier(redisClient)
	topic := cfg.Kafka.Topic.SettlementEvent

	walletSvc := service.NewWalletService(st, locker, gen, clock, appLog)
	rechargeSvc := service.NewRechargeService(st, locker, walletSvc, gen, clock, cfg.Business.Recharge, topic, appLog)
	withdrawSvc := service.NewWithdrawService(st, locker, walletSvc, gen, clock, cfg.Business.Withdraw, topic, appLog)
	pointsSvc := service.NewPointsService(st, locker, gen, clock, topic, appLog)

	timeoutJob := job.NewRechargeTimeoutJob(rechargeSvc, appLog)
	timeoutJob.Start()
	defer timeoutJob.Stop()

	outboxJob := job.NewOutboxJob(st, producer, cfg.Business.Outbox.MaxRetryCount, appLog)
	outboxJob.Start()
	defer outboxJob.Stop()

	router := handler.NewRouter(
		appLog,
		handler.NewWalletHandler(walletSvc, verifier),
		handler.NewRechargeHandler(rechargeSvc),
		handler.NewWithdrawHandler(withdrawSvc),
		handler.NewPointsHandler(pointsSvc),
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLog.Infof("钱包结算服务启动，监听端口 %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务异常退出: %v", err)
		}
	}()

	// 优雅退出：等在途请求处理完再关
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("收到退出信号，开始优雅关闭")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.WithError(err).Error("HTTP 服务关闭超时")
	}
	appLog.Info("服务已退出")
}
