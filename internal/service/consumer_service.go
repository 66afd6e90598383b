package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"docqa-engine/internal/dto"
	"docqa-engine/internal/repository/specification"
	"docqa-engine/internal/repository/unitofwork"
	"docqa-engine/pkg/embedding"
	"docqa-engine/pkg/events"
	pktNats "docqa-engine/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService embeds document chunks off the request path. Ingestion
// stores chunk text immediately; this worker fills in the vectors.
type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.Provider
	natsPub           *pktNats.Publisher
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.Provider,
	natsPub *pktNats.Publisher,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		natsPub:           natsPub,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishIndexDocumentMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal message: %v", err)
		msg.Ack() // poison message, retrying will not help
		return
	}

	log.Printf("[INFO] Embedding chunks for doc: %s", payload.DocId)

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chunks, err := uow.DocumentChunkRepository().FindAll(ctx, specification.ByDocID{DocID: payload.DocId})
	if err != nil {
		log.Printf("[ERROR] Failed to load chunks for doc %s: %v", payload.DocId, err)
		msg.Nack()
		return
	}
	if len(chunks) == 0 {
		log.Printf("[WARN] No chunks found for doc %s, nothing to embed", payload.DocId)
		msg.Ack()
		return
	}

	// Embed outside the transaction: provider calls are slow and retriable.
	for _, chunk := range chunks {
		vec, err := cs.embeddingProvider.Generate(ctx, chunk.Content, embedding.TaskRetrievalDocument)
		if err != nil {
			log.Printf("[ERROR] Failed to embed chunk %d of doc %s: %v", chunk.ChunkIndex, payload.DocId, err)
			msg.Nack()
			return
		}
		chunk.EmbeddingValue = vec
	}

	if err := uow.Begin(ctx); err != nil {
		log.Printf("[ERROR] Failed to begin transaction: %v", err)
		msg.Nack()
		return
	}
	defer uow.Rollback()

	for _, chunk := range chunks {
		now := time.Now()
		chunk.UpdatedAt = &now
		if err := uow.DocumentChunkRepository().Update(ctx, chunk); err != nil {
			log.Printf("[ERROR] Failed to update chunk %s: %v", chunk.Id, err)
			msg.Nack()
			return
		}
	}

	if err := uow.Commit(); err != nil {
		log.Printf("[ERROR] Failed to commit transaction: %v", err)
		msg.Nack()
		return
	}

	if cs.natsPub != nil {
		if err := cs.natsPub.Publish(ctx, events.NewChunkIndexed(payload.DocId, len(chunks))); err != nil {
			log.Printf("[WARN] Failed to publish chunk.indexed event: %v", err)
		}
	}

	log.Printf("[SUCCESS] Doc indexed: %d chunks for %s", len(chunks), payload.DocId)
	msg.Ack()
}
