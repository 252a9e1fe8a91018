package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"order-pipeline/internal/infra"
	"order-pipeline/internal/queue"
)

type ProductProcessor struct {
	client infra.ProductWriterInterface
	logger *zap.Logger
}

func NewProductProcessor(client infra.ProductWriterInterface, logger *zap.Logger) *ProductProcessor {
	return &ProductProcessor{client: client, logger: logger}
}

func (p *ProductProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Name != JobCreateProduct && job.Name != JobUpdateProduct {
		return unknownJob(QueueProductCreation, job)
	}
	payload, err := Decode(job)
	if err != nil {
		return err
	}
	pl := payload.(ProductUpsertPayload)
	if pl.JobName() != job.Name {
		return queue.Unrecoverablef("%s job without matching product id", job.Name)
	}

	fields, err := ProductFormFields(pl.Fields)
	if err != nil {
		return queue.Unrecoverable(err)
	}
	form, err := infra.NewProductForm(fields, pl.Image)
	if err != nil {
		return queue.Unrecoverable(err)
	}

	var product *infra.ProductInfo
	if pl.ProductID == nil {
		product, err = p.client.CreateProduct(ctx, form)
	} else {
		product, err = p.client.UpdateProduct(ctx, *pl.ProductID, form)
	}
	if err != nil {
		return classify(err)
	}

	log := p.logger.With(zap.String("job_name", job.Name))
	if product != nil {
		log = log.With(zap.Uint64("product_id", product.ID), zap.String("sku", product.SKU))
	}
	log.Info("product written to admin service")
	return nil
}

// ProductFormFields encodes a sparse field map as multipart fields, sorted
// by key. Nil and empty-string values are left out and booleans become
// "1" or "0".
func ProductFormFields(fields map[string]any) ([][2]string, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		var s string
		switch v := fields[k].(type) {
		case nil:
			continue
		case string:
			if v == "" {
				continue
			}
			s = v
		case bool:
			s = "0"
			if v {
				s = "1"
			}
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			s = strconv.Itoa(v)
		case int64:
			s = strconv.FormatInt(v, 10)
		case json.Number:
			s = v.String()
		case []any, map[string]any:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode field %s: %w", k, err)
			}
			s = string(raw)
		default:
			s = fmt.Sprint(v)
		}
		out = append(out, [2]string{k, s})
	}
	return out, nil
}
