package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/Lumi/internal/models"
)

var (
	errNoMediaSource  = errors.New("no media source configured")
	errNoMediaResults = errors.New("no media results")
)

// Command is a parsed slash command.
type Command int

const (
	CommandUnknown Command = iota
	CommandStats
	CommandHelp
	CommandResources
	CommandReminder
)

// ParseCommand parses the first word of normalized input as a slash command.
func ParseCommand(normalized string) Command {
	fields := strings.Fields(normalized)
	if len(fields) == 0 {
		return CommandUnknown
	}
	switch fields[0] {
	case "/estadisticas":
		return CommandStats
	case "/ayuda":
		return CommandHelp
	case "/recursos":
		return CommandResources
	case "/recordatorio":
		return CommandReminder
	default:
		return CommandUnknown
	}
}

func (r *Router) handleCommand(ctx context.Context, sess *models.Session, normalized string) (models.Reply, error) {
	switch ParseCommand(normalized) {
	case CommandStats:
		insights := r.weeklyInsights(ctx, sess)
		if err := r.save(ctx, sess); err != nil {
			return models.Reply{}, err
		}
		return r.reply(statsMessage(insights), sess.UserName, nil), nil
	case CommandHelp:
		return r.reply(helpMessage, sess.UserName, nil), nil
	case CommandResources:
		return r.offerStressOptions(ctx, sess)
	case CommandReminder:
		return r.startReminder(ctx, sess)
	default:
		return r.reply(unknownCommandMessage, sess.UserName, nil), nil
	}
}

// offerStressOptions shows the five-option support menu.
func (r *Router) offerStressOptions(ctx context.Context, sess *models.Session) (models.Reply, error) {
	insights := r.weeklyInsights(ctx, sess)
	sess.Mode = models.ModeChoosingStressOption
	sess.RecentlyOfferedHelp = true
	if err := r.save(ctx, sess); err != nil {
		return models.Reply{}, err
	}
	return r.reply(stressOfferMessage(sess.UserName, insights), sess.UserName, nil), nil
}

func (r *Router) handleStressOption(ctx context.Context, sess *models.Session, normalized string) (models.Reply, error) {
	option := ParseStressOption(normalized)
	switch option {
	case OptionPhoto, OptionVideo, OptionMusic:
		rt, _ := option.Resource()
		return r.handleResourceRequest(ctx, sess, rt)
	case OptionTalk:
		sess.Mode = models.ModeGeneral
		if err := r.save(ctx, sess); err != nil {
			return models.Reply{}, err
		}
		return r.reply(talkMessage, sess.UserName, nil), nil
	case OptionReminder:
		return r.startReminder(ctx, sess)
	default:
		sess.Mode = models.ModeGeneral
		if err := r.save(ctx, sess); err != nil {
			return models.Reply{}, err
		}
		return r.reply(stressOptionNotUnderstoodMessage, sess.UserName, nil), nil
	}
}

// handleResourceRequest looks up a resource. The session stays in resource
// mode until a lookup succeeds.
func (r *Router) handleResourceRequest(ctx context.Context, sess *models.Session, rt models.ResourceType) (models.Reply, error) {
	sess.Mode = models.ModeChoosingResource
	if err := r.save(ctx, sess); err != nil {
		return models.Reply{}, err
	}

	query := resourceQuery(rt)
	url, err := r.findResource(ctx, rt, query)
	if err != nil {
		slog.Warn("Router.handleResourceRequest: resource not found", "senderID", sess.SenderID, "resource", rt, "error", err)
		return r.reply(resourceNotFoundMessage(rt), sess.UserName, nil), nil
	}

	sess.Mode = models.ModeGeneral
	sess.ResourcesUsed = append(sess.ResourcesUsed, models.ResourceUse{Type: rt, Query: query, Date: r.clock()})
	if err := r.save(ctx, sess); err != nil {
		return models.Reply{}, err
	}
	return r.reply(resourceFoundMessage(rt, url), sess.UserName, nil), nil
}

func (r *Router) findResource(ctx context.Context, rt models.ResourceType, query string) (string, error) {
	var (
		results []models.MediaResult
		err     error
	)
	if rt == models.ResourcePhoto {
		if r.deps.Images == nil {
			return "", errNoMediaSource
		}
		results, err = r.deps.Images.SearchImages(ctx, query, 1)
	} else {
		if r.deps.Videos == nil {
			return "", errNoMediaSource
		}
		results, err = r.deps.Videos.SearchVideos(ctx, query, 1)
	}
	if err != nil {
		return "", fmt.Errorf("search %s: %w", rt, err)
	}
	if len(results) == 0 || results[0].URL == "" {
		return "", errNoMediaResults
	}
	return results[0].URL, nil
}

func (r *Router) startReminder(ctx context.Context, sess *models.Session) (models.Reply, error) {
	sess.Mode = models.ModeAwaitingFollowUpTime
	if err := r.save(ctx, sess); err != nil {
		return models.Reply{}, err
	}
	return r.reply(reminderPromptMessage, sess.UserName, nil), nil
}

func (r *Router) handleFollowUpTime(ctx context.Context, sess *models.Session, raw string) (models.Reply, error) {
	hhmm, ok := ParseFollowUpTime(raw)
	if !ok {
		return r.reply(invalidFollowUpTimeMessage, sess.UserName, nil), nil
	}
	sess.FollowUpTime = hhmm
	sess.Mode = models.ModeGeneral
	if err := r.save(ctx, sess); err != nil {
		return models.Reply{}, err
	}
	slog.Info("Router.handleFollowUpTime: follow-up time set", "senderID", sess.SenderID, "time", hhmm)
	return r.reply(followUpConfirmedMessage(hhmm), sess.UserName, nil), nil
}
