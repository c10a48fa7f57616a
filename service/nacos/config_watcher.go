package nacos

import (
	"fmt"

	"PPRelay/logger"

	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"go.uber.org/zap"
)

// Watcher pushes the content of one data-id to onChange: once at start, then
// on every change published in Nacos.
type Watcher struct {
	client config_client.IConfigClient
	dataId string
	group  string
}

func NewWatcher(client config_client.IConfigClient, dataId, group string) *Watcher {
	if group == "" {
		group = "DEFAULT_GROUP"
	}
	return &Watcher{client: client, dataId: dataId, group: group}
}

func (w *Watcher) Watch(onChange func(content string)) error {
	content, err := w.client.GetConfig(vo.ConfigParam{DataId: w.dataId, Group: w.group})
	if err != nil {
		return fmt.Errorf("get nacos config %s/%s: %w", w.group, w.dataId, err)
	}
	if content != "" {
		onChange(content)
	}
	err = w.client.ListenConfig(vo.ConfigParam{
		DataId: w.dataId,
		Group:  w.group,
		OnChange: func(_, group, dataId, data string) {
			logger.Info("nacos config changed", zap.String("group", group), zap.String("data_id", dataId))
			onChange(data)
		},
	})
	if err != nil {
		return fmt.Errorf("listen nacos config %s/%s: %w", w.group, w.dataId, err)
	}
	return nil
}

func (w *Watcher) Stop() error {
	return w.client.CancelListenConfig(vo.ConfigParam{DataId: w.dataId, Group: w.group})
}
