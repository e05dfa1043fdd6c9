package availability

// DefaultGranularity is the slot length used by the portal, in minutes.
const DefaultGranularity = 60

// GenerateSlots tiles slot's range into granularity-minute units starting at
// its start time. A trailing remainder shorter than one unit becomes a final
// short slot. Every emitted slot carries slot's booked state.
func GenerateSlots(slot TimeSlot, granularity int) ([]TimeSlot, error) {
	if granularity <= 0 {
		return nil, validationErrorf("granularity must be positive, got %d", granularity)
	}
	if err := slot.Range().Validate(); err != nil {
		return nil, err
	}
	if slot.Range().Minutes() <= granularity {
		return []TimeSlot{slot}, nil
	}

	step := Clock(granularity)
	out := make([]TimeSlot, 0, slot.Range().Minutes()/granularity+1)
	for start := slot.StartTime; start < slot.EndTime; start += step {
		end := start + step
		if end > slot.EndTime {
			end = slot.EndTime
		}
		out = append(out, TimeSlot{
			StartTime:     start,
			EndTime:       end,
			IsBooked:      slot.IsBooked,
			AppointmentID: slot.AppointmentID,
		})
	}
	return out, nil
}

// expandSlots runs GenerateSlots over every slot and returns the result
// ordered by start time.
func expandSlots(slots []TimeSlot, granularity int) ([]TimeSlot, error) {
	out := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		parts, err := GenerateSlots(s, granularity)
		if err != nil {
			return nil, err
		}
		out = append(out, parts...)
	}
	SortSlots(out)
	return out, nil
}
