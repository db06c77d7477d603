// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"paydash-go/internal/config"
	"paydash-go/internal/model"
	"paydash-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

// interactionMapping 是交互索引的结构。问题与回答使用标准分词器做全文检索，
// 其余字段用于按客户端、会话过滤。
const interactionMapping = `{
	"mappings": {
		"properties": {
			"event_id":   { "type": "keyword" },
			"client_id":  { "type": "keyword" },
			"session_id": { "type": "keyword" },
			"question":   { "type": "text", "analyzer": "standard" },
			"answer":     { "type": "text", "analyzer": "standard" },
			"category":   { "type": "keyword" },
			"created_at": { "type": "date" }
		}
	}
}`

// NewClient 根据配置创建 Elasticsearch 客户端。
func NewClient(esCfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	addrs := strings.Split(esCfg.Addresses, ",")
	for i := range addrs {
		addrs[i] = strings.TrimSpace(addrs[i])
	}
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addrs,
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
}

// InitES 初始化全局 Elasticsearch 客户端并确保交互索引存在。
func InitES(esCfg config.ElasticsearchConfig) error {
	client, err := NewClient(esCfg)
	if err != nil {
		return err
	}
	ESClient = client
	return EnsureIndex(context.Background(), client, esCfg.IndexName)
}

// EnsureIndex 检查索引是否存在，如果不存在则创建它。
func EnsureIndex(ctx context.Context, client *elasticsearch.Client, indexName string) error {
	res, err := client.Indices.Exists([]string{indexName}, client.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = client.Indices.Create(
		indexName,
		client.Indices.Create.WithContext(ctx),
		client.Indices.Create.WithBody(strings.NewReader(interactionMapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// IndexInteraction 将一次交互写入索引，以 EventID 作为文档 ID 保证重复投递幂等。
func IndexInteraction(ctx context.Context, client *elasticsearch.Client, indexName string, doc model.InteractionDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: doc.EventID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引交互到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index interaction")
	}
	return nil
}

// Indexer 把交互写入固定的索引。
type Indexer struct {
	Client    *elasticsearch.Client
	IndexName string
}

func (i Indexer) IndexInteraction(ctx context.Context, doc model.InteractionDocument) error {
	return IndexInteraction(ctx, i.Client, i.IndexName, doc)
}
