package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/numbergroup/aptmon/pkg/alert"
	"github.com/numbergroup/aptmon/pkg/bot"
	"github.com/numbergroup/aptmon/pkg/config"
	"github.com/numbergroup/aptmon/pkg/metrics"
	"github.com/numbergroup/aptmon/pkg/monitor"
	"github.com/numbergroup/aptmon/pkg/rpc"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	confFile := flag.String("conf", config.DefaultPath(), "path to the configuration file")
	envFile := flag.String("env", ".env", "path to an optional .env file holding BOT_TOKEN")

	flag.Parse()

	conf := config.LoadOrDefault(*confFile)

	env, err := config.LoadEnv(ctx, *envFile)
	if err != nil {
		conf.Log.WithError(err).Fatal("failed to load bot token")
	}

	api, err := tgbotapi.NewBotAPI(env.BotToken)
	if err != nil {
		conf.Log.WithError(err).Fatal("failed to connect to telegram")
	}
	conf.Log.WithField("bot", api.Self.UserName).Info("authorized on telegram")

	alertChannels := []alert.Alert{alert.NewTelegram(conf.Log, api, conf.ChatID)}
	if !conf.Slack.Empty() {
		alertChannels = append(alertChannels, alert.NewSlack(conf))
	}
	if !conf.Pagerduty.Empty() {
		alertChannels = append(alertChannels, alert.NewPagerduty(conf))
	}

	client := rpc.NewClient(conf.Log)
	waitGroup := &sync.WaitGroup{}

	if conf.MetricsAddr != "" {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			if err := metrics.Serve(ctx, conf.Log, conf.MetricsAddr); err != nil {
				conf.Log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	mon := monitor.NewLagMonitor(conf, alertChannels, client)
	waitGroup.Add(1)
	go func(m *monitor.LagMonitor) {
		conf.Log.WithField("name", m.Name()).Info("starting monitoring")

		defer waitGroup.Done()
		if err := m.Announce(ctx); err != nil {
			conf.Log.WithError(err).Error("failed to announce monitoring")
		}
		m.Run(ctx)
	}(mon)

	if err := bot.CheckUpdates(api); err != nil {
		pollingFailure(conf, api, err)
		stop()
		os.Exit(1)
	}

	updateConf := tgbotapi.NewUpdate(0)
	updateConf.Timeout = 60
	updates := api.GetUpdatesChan(updateConf)
	go func() {
		<-ctx.Done()
		api.StopReceivingUpdates()
	}()

	handler := bot.NewHandler(conf, api, client)
	if err := handler.Serve(ctx, updates); err != nil {
		pollingFailure(conf, api, err)
		stop()
		os.Exit(1)
	}

	waitGroup.Wait()
	conf.Log.Info("all monitors stopped, exiting")
}

// pollingFailure logs err and makes one attempt to tell the alert chat.
func pollingFailure(conf *config.Config, api *tgbotapi.BotAPI, err error) {
	conf.Log.WithError(err).Error("infinity polling error")
	if _, sendErr := api.Send(tgbotapi.NewMessage(conf.ChatID, "Infinity Polling error: Restart the service")); sendErr != nil {
		conf.Log.WithError(sendErr).Error("failed to send polling failure notice")
	}
}
