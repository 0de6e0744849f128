// Package es 提供了评分分析索引的 Elasticsearch 客户端功能。
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

	"cora-trainer-go/internal/config"
	"cora-trainer-go/internal/model"
	"cora-trainer-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const defaultSearchSize = 20

const scoreIndexMapping = `{
	"mappings": {
		"properties": {
			"doc_id": { "type": "keyword" },
			"user_key": { "type": "keyword" },
			"conversation_id": { "type": "keyword" },
			"auth_method": { "type": "keyword" },
			"mood": { "type": "keyword" },
			"message_count": { "type": "integer" },
			"total_score": { "type": "integer" },
			"professionalism": { "type": "integer" },
			"communication": { "type": "integer" },
			"problem_resolution": { "type": "integer" },
			"empathy": { "type": "integer" },
			"efficiency": { "type": "integer" },
			"strengths": { "type": "text" },
			"improvements": { "type": "text" },
			"overall_feedback": { "type": "text" },
			"created_at": { "type": "date" }
		}
	}
}`

// ScoreIndex 是评分分析索引。
type ScoreIndex struct {
	client *elasticsearch.Client
	index  string
}

// NewScoreIndex 初始化 Elasticsearch 客户端并确保索引存在。
func NewScoreIndex(esCfg config.ElasticsearchConfig) (*ScoreIndex, error) {
	var addrs []string
	for _, a := range strings.Split(esCfg.Addresses, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addrs,
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, err
	}
	return NewScoreIndexWithClient(client, esCfg.IndexName)
}

// NewScoreIndexWithClient 使用已有客户端创建索引句柄，不存在时创建索引。
func NewScoreIndexWithClient(client *elasticsearch.Client, indexName string) (*ScoreIndex, error) {
	if indexName == "" {
		indexName = "conversation_scores"
	}
	x := &ScoreIndex{client: client, index: indexName}
	if err := x.createIndexIfNotExists(); err != nil {
		return nil, err
	}
	return x, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (x *ScoreIndex) createIndexIfNotExists() error {
	res, err := x.client.Indices.Exists([]string{x.index})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", x.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = x.client.Indices.Create(
		x.index,
		x.client.Indices.Create.WithBody(strings.NewReader(scoreIndexMapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", x.index, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", x.index, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", x.index)
	return nil
}

// IndexScore 写入（或覆盖）一条评分文档。
func (x *ScoreIndex) IndexScore(ctx context.Context, doc model.ScoreDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      x.index,
		DocumentID: doc.DocID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引评分文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index score document")
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source model.ScoreDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchScores 按全文、用户与最低总分过滤评分文档，按时间倒序返回。
func (x *ScoreIndex) SearchScores(ctx context.Context, q model.ScoreSearchQuery) ([]model.ScoreDocument, int64, error) {
	body, err := json.Marshal(BuildSearchQuery(q))
	if err != nil {
		return nil, 0, err
	}
	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.index),
		x.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, 0, err
	}
	docs := make([]model.ScoreDocument, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return docs, sr.Hits.Total.Value, nil
}

// BuildSearchQuery 构造检索请求体。
func BuildSearchQuery(q model.ScoreSearchQuery) map[string]interface{} {
	size := q.Size
	if size <= 0 {
		size = defaultSearchSize
	}
	must := []interface{}{}
	if text := strings.TrimSpace(q.Text); text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"overall_feedback", "strengths", "improvements"},
			},
		})
	}
	filter := []interface{}{}
	if q.UserKey != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"user_key": model.NormalizeUserKey(q.UserKey)},
		})
	}
	if q.MinTotal > 0 {
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{"total_score": map[string]interface{}{"gte": q.MinTotal}},
		})
	}
	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}
	return map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}},
		},
	}
}
