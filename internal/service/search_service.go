package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"paydash-go/internal/model"
	"paydash-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

// ErrSearchUnavailable 表示没有配置 Elasticsearch。
var ErrSearchUnavailable = errors.New("search is not configured")

// ErrEmptyQuery 表示搜索关键词为空。
var ErrEmptyQuery = errors.New("query must not be empty")

// MaxSearchSize 是单次搜索返回结果的上限。
const MaxSearchSize = 50

// SearchService 在历史问答中做全文检索。
type SearchService interface {
	Search(ctx context.Context, clientID, query, sessionID string, size int) ([]model.SearchResponseDTO, error)
}

type searchService struct {
	esClient  *elasticsearch.Client
	indexName string
}

// NewSearchService 创建一个新的 SearchService 实例。esClient 为空时所有搜索都返回 ErrSearchUnavailable。
func NewSearchService(esClient *elasticsearch.Client, indexName string) SearchService {
	return &searchService{esClient: esClient, indexName: indexName}
}

// Search 只在当前客户端的记录中检索，问题字段的权重高于回答。
func (s *searchService) Search(ctx context.Context, clientID, query, sessionID string, size int) ([]model.SearchResponseDTO, error) {
	if s.esClient == nil {
		return nil, ErrSearchUnavailable
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if size <= 0 || size > MaxSearchSize {
		size = 10
	}
	log.Infof("[SearchService] 开始搜索, query: '%s', size: %d, clientID: %s", query, size, clientID)

	filter := []map[string]interface{}{
		{"term": map[string]interface{}{"client_id": clientID}},
	}
	if sessionID != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"session_id": sessionID}})
	}
	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  query,
						"fields": []string{"question^2", "answer"},
					},
				},
				"filter": filter,
			},
		},
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(&buf),
		s.esClient.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		log.Errorf("[SearchService] 向 Elasticsearch 发送搜索请求失败: %v", err)
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.InteractionDocument `json:"_source"`
				Score  float64                   `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		log.Errorf("[SearchService] 解析 Elasticsearch 响应失败: %v", err)
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	results := make([]model.SearchResponseDTO, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		results = append(results, model.SearchResponseDTO{
			EventID:   hit.Source.EventID,
			SessionID: hit.Source.SessionID,
			Question:  hit.Source.Question,
			Answer:    hit.Source.Answer,
			Category:  hit.Source.Category,
			Score:     hit.Score,
			CreatedAt: hit.Source.CreatedAt,
		})
	}
	log.Infof("[SearchService] 搜索完成, 返回 %d 条结果", len(results))
	return results, nil
}
