package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"seqlab.portal/internal/core/domain"
)

const (
	folderCachePrefix = "ngs:folders:"
	folderCacheTTL    = 5 * time.Minute

	jobUpdateChannel = "ngs:job_updates"
)

// Adapter serves the folder-listing cache and the job-update pub/sub on a
// single redis client.
type Adapter struct {
	client *redis.Client
}

func NewAdapter(url string) (*Adapter, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	return &Adapter{client: client}, client, nil
}

// GetFolders returns a cached folder listing. A miss or a decode failure
// is reported as a miss; the caller re-lists from disk.
func (a *Adapter) GetFolders(ctx context.Context, path string) ([]domain.Folder, bool) {
	data, err := a.client.Get(ctx, folderCachePrefix+path).Bytes()
	if err != nil {
		return nil, false
	}

	var folders []domain.Folder
	if err := json.Unmarshal(data, &folders); err != nil {
		return nil, false
	}
	return folders, true
}

func (a *Adapter) SetFolders(ctx context.Context, path string, folders []domain.Folder) error {
	data, err := json.Marshal(folders)
	if err != nil {
		return err
	}
	return a.client.Set(ctx, folderCachePrefix+path, data, folderCacheTTL).Err()
}

// PublishJobUpdate notifies push consumers of a job status transition.
func (a *Adapter) PublishJobUpdate(ctx context.Context, update domain.JobUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return a.client.Publish(ctx, jobUpdateChannel, data).Err()
}

// SubscribeJobUpdates delivers job status transitions until ctx is done.
func (a *Adapter) SubscribeJobUpdates(ctx context.Context) (<-chan domain.JobUpdate, error) {
	pubsub := a.client.Subscribe(ctx, jobUpdateChannel)
	ch := make(chan domain.JobUpdate)

	go func() {
		defer pubsub.Close()
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var update domain.JobUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					continue
				}
				select {
				case ch <- update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
